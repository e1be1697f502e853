// Package main provides the render worker entry point.
// Consumes render requests, lays out the print job and publishes it for
// the PDF renderer.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/config"
	"github.com/drfirst/go-clinidoc/internal/infrastructure/redpanda"
	"github.com/drfirst/go-clinidoc/internal/observability/logging"
	"github.com/drfirst/go-clinidoc/internal/observability/metrics"
	"github.com/drfirst/go-clinidoc/internal/observability/tracing"
	"github.com/drfirst/go-clinidoc/internal/render"
	"github.com/drfirst/go-clinidoc/pkg/circuitbreaker"
	"github.com/drfirst/go-clinidoc/pkg/idempotency"
	"github.com/drfirst/go-clinidoc/pkg/workerpool"
)

const serviceName = "render-worker"

func main() {
	cfg, err := config.Load(os.Getenv("CLINIDOC_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log, serviceName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("render worker failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, tracing.FromConfig(cfg, serviceName))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tp.Shutdown(context.Background())

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	backend, closeBackend, err := inboxBackend(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	inbox := idempotency.NewInbox(backend, idempotency.DefaultInboxConfig(), logger)
	inbox.StartCleanup()
	defer inbox.Stop()

	breakers := circuitbreaker.NewRegistry(logger)
	cb, err := breakers.Get("render-jobs")
	if err != nil {
		return err
	}
	pcfg := redpanda.DefaultProducerConfig()
	pcfg.Brokers = cfg.Redpanda.Brokers
	pcfg.ClientID = cfg.Redpanda.ClientID + "-" + serviceName
	producer, err := redpanda.NewProducer(pcfg, cb, logger)
	if err != nil {
		return fmt.Errorf("producer creation failed: %w", err)
	}
	defer producer.Close()
	producer.SetMetrics(m)

	processor := render.NewProcessor(inbox, producer, redpanda.TopicRenderJobs, logger)

	poolCfg := workerpool.DefaultConfig()
	poolCfg.Workers = cfg.Worker.Workers
	poolCfg.QueueSize = cfg.Worker.QueueSize
	poolCfg.TaskTimeout = cfg.Worker.Timeout

	workers, err := workerpool.New(poolCfg, renderTask(processor, m, logger), logger)
	if err != nil {
		return fmt.Errorf("worker pool creation failed: %w", err)
	}
	workers.Start()
	defer workers.Stop()

	consumerCfg := redpanda.DefaultConsumerConfig()
	consumerCfg.Brokers = cfg.Redpanda.Brokers
	consumerCfg.GroupID = cfg.Redpanda.ConsumerGroup
	consumerCfg.Topics = []string{redpanda.TopicRenderRequests}

	consumer, err := redpanda.NewConsumer(consumerCfg, func(ctx context.Context, msg *redpanda.ConsumedMessage) error {
		m.KafkaMessagesConsumed.Inc()
		out, err := workers.Do(ctx, msg.Value)
		if err != nil {
			return err
		}
		if out.Err != nil {
			return fmt.Errorf("%s/%d/%d: %w", msg.Topic, msg.Partition, msg.Offset, out.Err)
		}
		return nil
	}, producer, logger)
	if err != nil {
		return fmt.Errorf("consumer creation failed: %w", err)
	}
	consumed := make(chan error, 1)
	go func() { consumed <- consumer.Run(ctx) }()

	metricsServer := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           metrics.Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("render worker started",
		zap.Strings("brokers", cfg.Redpanda.Brokers),
		zap.Int("workers", poolCfg.Workers))

	<-ctx.Done()

	logger.Info("shutting down")
	if err := <-consumed; err != nil {
		logger.Warn("consumer stopped with error", zap.Error(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	metricsServer.Shutdown(shutdownCtx)
	logger.Info("render worker stopped")
	return nil
}

// renderTask runs one render request. Requests that can never succeed are
// marked permanent so the pool does not retry them.
func renderTask(p *render.Processor, m *metrics.Metrics, logger *zap.Logger) workerpool.Handler[[]byte, *render.Job] {
	return func(ctx context.Context, payload []byte) (*render.Job, error) {
		job, err := p.Handle(ctx, payload)
		if err != nil {
			m.RenderRequests.WithLabelValues("failed").Inc()
			if idempotency.IsTerminal(err) {
				err = workerpool.Permanent(err)
			}
			return nil, err
		}

		m.RenderRequests.WithLabelValues("built").Inc()
		logger.Info("render job published",
			zap.String("request_id", job.RequestID),
			zap.Int("sheets", len(job.PrintJob.Sheets)))
		return job, nil
	}
}

// inboxBackend uses Postgres when configured so deduplication survives
// restarts and is shared between worker replicas.
func inboxBackend(ctx context.Context, db config.DatabaseConfig, logger *zap.Logger) (idempotency.Backend, func(), error) {
	if db.URL == "" {
		logger.Warn("no database configured, render deduplication is per process")
		return idempotency.NewMemoryBackend(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, db.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	backend := idempotency.NewPostgresBackend(pool)
	if err := backend.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate inbox: %w", err)
	}
	return backend, pool.Close, nil
}
