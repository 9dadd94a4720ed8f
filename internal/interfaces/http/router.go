// Package http serves the operations endpoints of the sclstats processes:
// health checks and the Prometheus scrape target.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/interfaces/http/handlers"
	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers of the operations listener. Nil
// handlers are not mounted.
type RouterConfig struct {
	HealthHandler  *handlers.HealthHandler
	MetricsHandler http.Handler
	Logger         logging.Logger
}

// NewRouter constructs the route tree of the operations listener.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()))

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
		r.Get("/healthz/detail", cfg.HealthHandler.Detailed)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	return r
}

//Personal.AI order the ending
