// Package workerpool runs typed jobs on a fixed set of goroutines with
// bounded queueing and per-job retries.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPoolStopped = errors.New("pool is shutting down")
	ErrQueueFull   = errors.New("task queue is full")
	ErrPanic       = errors.New("handler panicked")
)

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks a handler error that retrying cannot fix.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err}
}

// Handler processes one job.
type Handler[In, Out any] func(ctx context.Context, in In) (Out, error)

// Outcome is the final result of a job after retries.
type Outcome[Out any] struct {
	Value    Out
	Err      error
	Attempts int
}

// Config holds pool configuration.
type Config struct {
	Workers   int
	QueueSize int
	// MaxRetries is the number of retries after the first failed attempt.
	MaxRetries int
	// RetryDelay doubles after each retry.
	RetryDelay time.Duration
	// TaskTimeout bounds each attempt; zero means no timeout.
	TaskTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns defaults sized for document layout work.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		QueueSize:       100,
		MaxRetries:      2,
		RetryDelay:      100 * time.Millisecond,
		TaskTimeout:     30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

type job[In, Out any] struct {
	ctx   context.Context
	in    In
	reply chan Outcome[Out]
}

// Pool runs Handler on Workers goroutines.
type Pool[In, Out any] struct {
	cfg     Config
	handler Handler[In, Out]
	logger  *zap.Logger

	jobs chan job[In, Out]
	wg   sync.WaitGroup

	mu      sync.RWMutex // guards jobs against sends after close
	stopped bool

	base   context.Context
	cancel context.CancelFunc

	submitted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
	busy      atomic.Int64
}

// New creates a pool. Call Start before submitting.
func New[In, Out any](cfg Config, h Handler[In, Out], logger *zap.Logger) (*Pool[In, Out], error) {
	if h == nil {
		return nil, errors.New("handler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	base, cancel := context.WithCancel(context.Background())
	return &Pool[In, Out]{
		cfg:     cfg,
		handler: h,
		logger:  logger,
		jobs:    make(chan job[In, Out], cfg.QueueSize),
		base:    base,
		cancel:  cancel,
	}, nil
}

// Start launches the workers.
func (p *Pool[In, Out]) Start() {
	for i := range p.cfg.Workers {
		p.wg.Add(1)
		go p.run(i)
	}
	p.logger.Info("worker pool started",
		zap.Int("workers", p.cfg.Workers),
		zap.Int("queue_size", p.cfg.QueueSize))
}

func (p *Pool[In, Out]) enqueue(j job[In, Out]) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- j:
		p.submitted.Add(1)
		return nil
	default:
		return ErrQueueFull
	}
}

// Go queues in without waiting. Failures are only logged.
func (p *Pool[In, Out]) Go(in In) error {
	return p.enqueue(job[In, Out]{in: in})
}

// Do queues in and waits for its outcome. The returned error reports only
// submission problems or ctx expiry; handler failures are in Outcome.Err.
func (p *Pool[In, Out]) Do(ctx context.Context, in In) (Outcome[Out], error) {
	reply := make(chan Outcome[Out], 1)
	if err := p.enqueue(job[In, Out]{ctx: ctx, in: in, reply: reply}); err != nil {
		return Outcome[Out]{}, err
	}
	select {
	case <-ctx.Done():
		return Outcome[Out]{}, ctx.Err()
	case out := <-reply:
		return out, nil
	}
}

// Stop rejects new jobs, drains the queue and waits for the workers up to
// ShutdownTimeout. It is safe to call more than once.
func (p *Pool[In, Out]) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	defer p.cancel()

	select {
	case <-done:
		p.logger.Info("worker pool stopped")
		return nil
	case <-time.After(p.cfg.ShutdownTimeout):
		p.logger.Warn("worker pool shutdown timed out")
		return errors.New("worker pool shutdown timed out")
	}
}

func (p *Pool[In, Out]) run(worker int) {
	defer p.wg.Done()
	for j := range p.jobs {
		p.busy.Add(1)
		out := p.process(j)
		p.busy.Add(-1)

		if out.Err == nil {
			p.succeeded.Add(1)
		} else {
			p.failed.Add(1)
			p.logger.Error("job failed",
				zap.Int("worker", worker),
				zap.Int("attempts", out.Attempts),
				zap.Error(out.Err))
		}
		if j.reply != nil {
			j.reply <- out
		}
	}
}

func (p *Pool[In, Out]) process(j job[In, Out]) Outcome[Out] {
	ctx := j.ctx
	if ctx == nil {
		ctx = p.base
	}

	delay := p.cfg.RetryDelay
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome[Out]{Err: err, Attempts: attempt - 1}
		}

		v, err := p.attempt(ctx, j.in)
		if err == nil {
			return Outcome[Out]{Value: v, Attempts: attempt}
		}

		var perm permanentError
		if errors.As(err, &perm) {
			return Outcome[Out]{Err: perm.err, Attempts: attempt}
		}
		if attempt > p.cfg.MaxRetries {
			return Outcome[Out]{
				Err:      fmt.Errorf("failed after %d attempts: %w", attempt, err),
				Attempts: attempt,
			}
		}

		p.retried.Add(1)
		p.logger.Debug("retrying job", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			return Outcome[Out]{Err: ctx.Err(), Attempts: attempt}
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// attempt runs the handler once. A panic is reported as a permanent
// ErrPanic so the worker survives it.
func (p *Pool[In, Out]) attempt(ctx context.Context, in In) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("handler panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = Permanent(fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()
	if p.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TaskTimeout)
		defer cancel()
	}
	return p.handler(ctx, in)
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Submitted int64
	Succeeded int64
	Failed    int64
	Retried   int64
	Busy      int64
	Queued    int
	Capacity  int
}

// Stats returns current counters.
func (p *Pool[In, Out]) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Succeeded: p.succeeded.Load(),
		Failed:    p.failed.Load(),
		Retried:   p.retried.Load(),
		Busy:      p.busy.Load(),
		Queued:    len(p.jobs),
		Capacity:  cap(p.jobs),
	}
}

// Saturated reports whether the queue is at least 90% full.
func (p *Pool[In, Out]) Saturated() bool {
	s := p.Stats()
	return s.Queued*10 >= s.Capacity*9
}
