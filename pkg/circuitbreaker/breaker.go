// Package circuitbreaker guards calls to external collaborators (the AI
// assist service, the message broker) with sony/gobreaker, reporting state
// changes through zap and OpenTelemetry metrics.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// State is a breaker state as reported in health output.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrOpen is returned while the circuit rejects calls.
var ErrOpen = errors.New("circuit open")

// Config configures one breaker.
type Config struct {
	Name string
	// HalfOpenProbes is the number of calls let through while half-open.
	HalfOpenProbes uint32
	// Window is how often counts reset while closed.
	Window time.Duration
	// Cooldown is how long the circuit stays open.
	Cooldown time.Duration
	// ConsecutiveFailures trips the circuit regardless of volume.
	ConsecutiveFailures uint32
	// FailureRatio trips the circuit once MinRequests calls were seen in
	// the current window.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultConfig returns defaults for interactive upstream calls.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		HalfOpenProbes:      3,
		Window:              time.Minute,
		Cooldown:            30 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.6,
		MinRequests:         10,
	}
}

func (c Config) shouldTrip(counts gobreaker.Counts) bool {
	if c.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= c.ConsecutiveFailures {
		return true
	}
	if c.MinRequests == 0 || counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

// requestError marks failures caused by the request rather than the
// upstream; they do not count against the circuit.
type requestError struct{ err error }

func (p requestError) Error() string { return p.err.Error() }
func (p requestError) Unwrap() error { return p.err }

// Permanent wraps err so the breaker treats the call as healthy. Do returns
// the unwrapped err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return requestError{err}
}

func healthy(err error) bool {
	var re requestError
	return err == nil || errors.As(err, &re) || errors.Is(err, context.Canceled)
}

// Breaker wraps a gobreaker circuit with tracing and metrics.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	logger *zap.Logger
	tracer trace.Tracer
	calls  metric.Int64Counter
}

// New creates a breaker.
func New(cfg Config, logger *zap.Logger) (*Breaker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	calls, err := otel.Meter("circuit-breaker").Int64Counter("circuit_breaker_calls_total",
		metric.WithDescription("Calls through a circuit breaker by outcome"))
	if err != nil {
		return nil, fmt.Errorf("breaker counter: %w", err)
	}

	b := &Breaker{
		name:   cfg.Name,
		logger: logger.With(zap.String("breaker", cfg.Name)),
		tracer: otel.Tracer("circuit-breaker"),
		calls:  calls,
	}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.HalfOpenProbes,
		Interval:     cfg.Window,
		Timeout:      cfg.Cooldown,
		ReadyToTrip:  cfg.shouldTrip,
		IsSuccessful: healthy,
		OnStateChange: func(_ string, from, to gobreaker.State) {
			b.logger.Warn("circuit breaker state changed",
				zap.String("from", string(stateOf(from))),
				zap.String("to", string(stateOf(to))))
		},
	})
	return b, nil
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state.
func (b *Breaker) State() State { return stateOf(b.cb.State()) }

// Do runs fn through the breaker. Rejections are reported as ErrOpen.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, span := b.tracer.Start(ctx, "breaker "+b.name,
		trace.WithAttributes(attribute.String("breaker.state", string(b.State()))))
	defer span.End()

	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})

	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "rejected"
		err = fmt.Errorf("%s: %w", b.name, ErrOpen)
	case healthy(err):
		outcome = "request_error"
		var re requestError
		if errors.As(err, &re) {
			err = re.err
		}
	default:
		outcome = "failure"
	}
	b.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("name", b.name),
		attribute.String("outcome", outcome)))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// Execute runs fn through b and returns its value.
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}

func stateOf(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// HealthStatus is one breaker's health report.
type HealthStatus struct {
	Name     string `json:"name"`
	State    State  `json:"state"`
	Requests uint32 `json:"requests"`
	Failures uint32 `json:"failures"`
}

// Healthy reports whether the circuit is closed.
func (h HealthStatus) Healthy() bool { return h.State == StateClosed }

// Health reports the breaker's state and counts in the current window.
func (b *Breaker) Health() HealthStatus {
	counts := b.cb.Counts()
	return HealthStatus{
		Name:     b.name,
		State:    b.State(),
		Requests: counts.Requests,
		Failures: counts.TotalFailures,
	}
}

// Registry keeps one breaker per upstream so every component calling the
// same upstream shares its circuit.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{breakers: make(map[string]*Breaker), logger: logger}
}

// Get returns the breaker for name, creating it with DefaultConfig.
func (r *Registry) Get(name string) (*Breaker, error) {
	return r.GetWith(DefaultConfig(name))
}

// GetWith returns the breaker for cfg.Name, creating it with cfg. An
// existing breaker keeps its original configuration.
func (r *Registry) GetWith(cfg Config) (*Breaker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[cfg.Name]; ok {
		return b, nil
	}
	b, err := New(cfg, r.logger)
	if err != nil {
		return nil, err
	}
	r.breakers[cfg.Name] = b
	return b, nil
}

// Health reports every breaker, sorted by name.
func (r *Registry) Health() []HealthStatus {
	r.mu.Lock()
	out := make([]HealthStatus, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Health())
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b HealthStatus) int { return strings.Compare(a.Name, b.Name) })
	return out
}
