// Package http wires the API route tree and the HTTP server.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/logging"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/metrics"
	"github.com/zetta-ds/carsigef/internal/interfaces/http/handlers"
	"github.com/zetta-ds/carsigef/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree.
type RouterConfig struct {
	AnalyticsHandler *handlers.AnalyticsHandler
	HealthHandler    *handlers.HealthHandler

	Logger      logging.Logger
	Metrics     *metrics.Collector
	CORSOrigins []string
}

// NewRouter constructs the complete HTTP route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSOrigins))
	}
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		h := cfg.AnalyticsHandler
		if h == nil {
			return
		}
		api.Get("/metadata", h.Metadata)
		api.Get("/records", h.Records)
		api.Get("/aggregates", h.Aggregates)
		api.Get("/overview/records", h.OverviewRecords)
		api.Get("/distribution/bands", h.BandDistribution)
		api.Get("/distribution/ownership", h.Ownership)
		api.Get("/evolution/years", h.Evolution)
		api.Post("/dataset/reset", h.Reset)
	})

	return r
}
