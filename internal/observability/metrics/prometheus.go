// Package metrics provides Prometheus metrics for the documentation service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drfirst/go-clinidoc/pkg/circuitbreaker"
)

// Metrics holds all application metrics
type Metrics struct {
	RecordsSaved          prometheus.Counter
	DuplicatesSuppressed  prometheus.Counter
	NotesComposed         *prometheus.CounterVec
	ScoresCalculated      *prometheus.CounterVec
	PrintJobsBuilt        prometheus.Counter
	PrintJobPages         prometheus.Histogram
	RenderRequests        *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	KafkaMessagesProduced prometheus.Counter
	KafkaMessagesConsumed prometheus.Counter
	OutboxPending         prometheus.Gauge
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates all metrics and registers them on reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		RecordsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patient_records_saved_total",
			Help: "Patient records created by save-and-exit",
		}),
		DuplicatesSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patient_records_duplicates_suppressed_total",
			Help: "Saves skipped because an identical record was saved recently",
		}),
		NotesComposed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinical_notes_composed_total",
			Help: "Clinical notes composed, by mode",
		}, []string{"mode"}),
		ScoresCalculated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scores_calculated_total",
			Help: "Clinical scores calculated, by calculator",
		}, []string{"calculator"}),
		PrintJobsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "print_jobs_built_total",
			Help: "Print jobs laid out",
		}),
		PrintJobPages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "print_job_sheets",
			Help:    "Sheets per print job",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 20},
		}),
		RenderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "render_requests_total",
			Help: "Render requests handled by the worker, by outcome",
		}, []string{"outcome"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "route", "status"}),
		KafkaMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		KafkaMessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
	}

	reg.MustRegister(
		m.RecordsSaved,
		m.DuplicatesSuppressed,
		m.NotesComposed,
		m.ScoresCalculated,
		m.PrintJobsBuilt,
		m.PrintJobPages,
		m.RenderRequests,
		m.HTTPRequestDuration,
		m.KafkaMessagesProduced,
		m.KafkaMessagesConsumed,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveBreakers records the state of each breaker.
func (m *Metrics) ObserveBreakers(statuses []circuitbreaker.HealthStatus) {
	for _, s := range statuses {
		var v float64
		switch s.State {
		case circuitbreaker.StateHalfOpen:
			v = 1
		case circuitbreaker.StateOpen:
			v = 2
		}
		m.CircuitBreakerState.WithLabelValues(s.Name).Set(v)
	}
}

// Handler returns the Prometheus HTTP handler for g. A nil g serves the
// default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
