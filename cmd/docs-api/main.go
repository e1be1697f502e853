// Package main provides the documentation API entry point.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/api"
	"github.com/drfirst/go-clinidoc/internal/api/middleware"
	"github.com/drfirst/go-clinidoc/internal/assist"
	"github.com/drfirst/go-clinidoc/internal/auth"
	"github.com/drfirst/go-clinidoc/internal/config"
	"github.com/drfirst/go-clinidoc/internal/history"
	"github.com/drfirst/go-clinidoc/internal/infrastructure/postgres"
	"github.com/drfirst/go-clinidoc/internal/infrastructure/redpanda"
	"github.com/drfirst/go-clinidoc/internal/institution"
	"github.com/drfirst/go-clinidoc/internal/observability/logging"
	"github.com/drfirst/go-clinidoc/internal/observability/metrics"
	"github.com/drfirst/go-clinidoc/internal/observability/tracing"
	"github.com/drfirst/go-clinidoc/internal/protocol"
	"github.com/drfirst/go-clinidoc/internal/record"
	"github.com/drfirst/go-clinidoc/internal/render"
	"github.com/drfirst/go-clinidoc/internal/storage"
	"github.com/drfirst/go-clinidoc/internal/storage/memory"
	"github.com/drfirst/go-clinidoc/pkg/circuitbreaker"
)

const serviceName = "docs-api"

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
		logger.Fatal("docs-api failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, tracing.FromConfig(cfg, serviceName))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownWithTimeout(tp.Shutdown, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	breakers := circuitbreaker.NewRegistry(logger)

	var (
		store      storage.Store = memory.New()
		recordOpts               = []record.Option{record.WithLogger(logger)}
		checks     []func(context.Context) error
	)

	if cfg.Database.URL != "" {
		pool, err := connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		pg := postgres.NewStore(pool, logger)
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		store = pg
		recordOpts = append(recordOpts, record.WithEvents(postgres.NewRecordEvents(pg, redpanda.TopicRecordEvents)))
		checks = append(checks, pool.Ping)
		logger.Info("connected to database")
	} else {
		logger.Warn("no database configured, using in-memory store")
	}

	var requester *render.Requester
	if len(cfg.Redpanda.Brokers) > 0 {
		cb, err := breakers.Get("redpanda")
		if err != nil {
			return err
		}
		pcfg := redpanda.DefaultProducerConfig()
		pcfg.Brokers = cfg.Redpanda.Brokers
		pcfg.ClientID = cfg.Redpanda.ClientID + "-" + serviceName

		producer, err := redpanda.NewProducer(pcfg, cb, logger)
		if err != nil {
			return err
		}
		defer producer.Close()
		producer.SetMetrics(m)

		requester = render.NewRequester(producer, redpanda.TopicRenderRequests)
		checks = append(checks, producer.Ping)
		logger.Info("connected to Redpanda", zap.Strings("brokers", cfg.Redpanda.Brokers))
	}

	secret := cfg.JWT.Secret
	if secret == "" {
		secret = ephemeralSecret()
		logger.Warn("jwt.secret not set, sessions will not survive a restart")
	}
	tokens := auth.NewTokenIssuer(auth.TokenConfig{Secret: secret, Issuer: cfg.JWT.Issuer, TTL: cfg.JWT.TTL})

	assistant, err := assist.New(assist.Config{
		Enabled: cfg.Assist.Enabled,
		BaseURL: cfg.Assist.BaseURL,
		APIKey:  cfg.Assist.APIKey,
		Timeout: cfg.Assist.Timeout,
	}, breakers, logger)
	if err != nil {
		return fmt.Errorf("init assist: %w", err)
	}

	var limiter *middleware.IPRateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	go housekeeping(ctx, limiter, breakers, m)

	router := api.NewRouter(api.Deps{
		Logger:       logger,
		Metrics:      m,
		Gatherer:     reg,
		Auth:         auth.NewService(store, tokens, logger, 0),
		Records:      record.NewService(store, recordOpts...),
		History:      history.NewRepository(store),
		Institutions: institution.NewRepository(store),
		Protocols:    protocol.NewService(store),
		Assistant:    assistant,
		Requester:    requester,
		RateLimiter:  limiter,
		CORSOrigins:  cfg.CORS.AllowedOrigins,
		TrustProxy:   cfg.Server.TrustProxy,
		ServiceName:  serviceName,
		Version:      cfg.App.Version,
		Ready: func(ctx context.Context) error {
			for _, check := range checks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting docs API", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}

func connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pcfg.MaxConns = cfg.MaxConns
	pcfg.MinConns = cfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// housekeeping evicts idle rate limiter entries and exports breaker state.
func housekeeping(ctx context.Context, limiter *middleware.IPRateLimiter, breakers *circuitbreaker.Registry, m *metrics.Metrics) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if limiter != nil {
				limiter.Sweep()
			}
			m.ObserveBreakers(breakers.Health())
		}
	}
}

func ephemeralSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func shutdownWithTimeout(fn func(context.Context) error, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Warn("tracer shutdown", zap.Error(err))
	}
}
