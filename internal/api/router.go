// Package api assembles the HTTP surface of the documentation service.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/api/handlers"
	"github.com/drfirst/go-clinidoc/internal/api/middleware"
	"github.com/drfirst/go-clinidoc/internal/assist"
	"github.com/drfirst/go-clinidoc/internal/auth"
	"github.com/drfirst/go-clinidoc/internal/history"
	"github.com/drfirst/go-clinidoc/internal/institution"
	"github.com/drfirst/go-clinidoc/internal/observability/metrics"
	"github.com/drfirst/go-clinidoc/internal/protocol"
	"github.com/drfirst/go-clinidoc/internal/record"
	"github.com/drfirst/go-clinidoc/internal/render"
)

// Deps wires the router. Metrics, Gatherer, Assistant, Requester,
// RateLimiter and Ready are optional.
type Deps struct {
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	Auth         *auth.Service
	Records      *record.Service
	History      *history.Repository
	Institutions *institution.Repository
	Protocols    *protocol.Service
	Assistant    assist.Assistant
	Requester    *render.Requester
	RateLimiter  *middleware.IPRateLimiter
	CORSOrigins  []string
	ServiceName  string
	Version      string
	// TrustProxy rewrites the remote address from forwarding headers
	// before logging and rate limiting.
	TrustProxy bool
	// Ready reports whether backing services are reachable.
	Ready func(ctx context.Context) error
}

// NewRouter builds the service router.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.ServiceName == "" {
		d.ServiceName = "docs-api"
	}

	r := chi.NewRouter()

	if d.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(d.CORSOrigins))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing(d.ServiceName))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}
	if d.RateLimiter != nil {
		r.Use(middleware.RateLimit(d.RateLimiter))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":%q,"version":%q}`, d.ServiceName, d.Version)
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				logger.Warn("readiness check failed", zap.Error(err))
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(d.Gatherer))
	}

	authHandler := handlers.NewAuthHandler(d.Auth, logger)
	documents := handlers.NewDocumentHandler(d.Institutions, d.Metrics, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(d.Auth))

			r.Get("/me", authHandler.Me)
			r.Mount("/documents", documents.Routes())
			r.Mount("/records", handlers.NewRecordHandler(d.Records, d.Metrics, logger).Routes())
			r.Mount("/history", handlers.NewHistoryHandler(d.History, logger).Routes())
			r.Mount("/institutions", handlers.NewInstitutionHandler(d.Institutions, logger).Routes())
			r.Mount("/protocols", handlers.NewProtocolHandler(d.Protocols, logger).Routes())
			r.Mount("/assist", handlers.NewAssistHandler(d.Assistant, logger).Routes())
			if d.Requester != nil {
				r.Mount("/render", handlers.NewRenderHandler(d.Requester, d.History, logger).Routes())
			}
		})
	})

	return r
}
