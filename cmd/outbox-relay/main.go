// Package main provides the outbox relay service entry point.
// Publishes committed record events from the Postgres outbox to Redpanda.
package main

import (
	"context"
	"errors"
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
	"github.com/drfirst/go-clinidoc/internal/infrastructure/postgres"
	"github.com/drfirst/go-clinidoc/internal/infrastructure/redpanda"
	"github.com/drfirst/go-clinidoc/internal/observability/logging"
	"github.com/drfirst/go-clinidoc/internal/observability/metrics"
	"github.com/drfirst/go-clinidoc/internal/observability/tracing"
	"github.com/drfirst/go-clinidoc/pkg/circuitbreaker"
)

const (
	serviceName = "outbox-relay"
	// processed entries are kept this long for inspection
	retention = 7 * 24 * time.Hour
)

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
		logger.Fatal("outbox relay failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required by the outbox relay")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, tracing.FromConfig(cfg, serviceName))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tp.Shutdown(context.Background())

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()
	if err := postgres.NewStore(pool, logger).Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("connected to database")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	breakers := circuitbreaker.NewRegistry(logger)
	cb, err := breakers.Get("redpanda")
	if err != nil {
		return err
	}
	producerCfg := redpanda.DefaultProducerConfig()
	producerCfg.Brokers = cfg.Redpanda.Brokers
	producerCfg.ClientID = cfg.Redpanda.ClientID + "-" + serviceName

	producer, err := redpanda.NewProducer(producerCfg, cb, logger)
	if err != nil {
		return fmt.Errorf("producer creation failed: %w", err)
	}
	defer producer.Close()
	producer.SetMetrics(m)
	logger.Info("connected to Redpanda", zap.Strings("brokers", cfg.Redpanda.Brokers))

	relayCfg := postgres.DefaultRelayConfig()
	relayCfg.BatchSize = cfg.Outbox.BatchSize
	relayCfg.PollInterval = cfg.Outbox.PollInterval
	relayCfg.MaxRetries = cfg.Outbox.MaxRetries
	relayCfg.DeadLetterTopic = redpanda.TopicDeadLetter

	relay := postgres.NewRelay(pool, producer, relayCfg, logger)
	relayDone := make(chan error, 1)
	go func() { relayDone <- relay.Run(ctx) }()

	metricsServer := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           metrics.Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsServer.Shutdown(shutdownCtx)
			return <-relayDone
		case <-ticker.C:
			maintain(ctx, relay, breakers, m, logger)
		}
	}
}

func maintain(ctx context.Context, relay *postgres.Relay, breakers *circuitbreaker.Registry, m *metrics.Metrics, logger *zap.Logger) {
	m.ObserveBreakers(breakers.Health())

	stats, err := relay.Stats(ctx)
	if err != nil {
		logger.Warn("outbox stats failed", zap.Error(err))
	} else {
		m.OutboxPending.Set(float64(stats.Pending))
		if stats.Retrying > 0 {
			logger.Warn("outbox entries retrying", zap.Int64("retrying", stats.Retrying))
		}
	}

	if n, err := relay.Cleanup(ctx, retention); err != nil {
		logger.Warn("outbox cleanup failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("outbox cleaned", zap.Int64("deleted", n))
	}
}
