package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drfirst/go-clinidoc/pkg/circuitbreaker"
)

func TestNew_RegistersAndServes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordsSaved.Inc()
	m.ScoresCalculated.WithLabelValues("bmi").Inc()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "patient_records_saved_total 1") {
		t.Errorf("expected records counter in output")
	}
	if !strings.Contains(body, `scores_calculated_total{calculator="bmi"} 1`) {
		t.Errorf("expected labelled score counter in output")
	}
}

func TestObserveBreakers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBreakers([]circuitbreaker.HealthStatus{
		{Name: "assist", State: circuitbreaker.StateOpen},
		{Name: "redpanda", State: circuitbreaker.StateClosed},
		{Name: "renderer", State: circuitbreaker.StateHalfOpen},
	})

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`circuit_breaker_state{name="assist"} 2`,
		`circuit_breaker_state{name="redpanda"} 0`,
		`circuit_breaker_state{name="renderer"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}
