package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mapflow/geocache/internal/handlers"
	"github.com/mapflow/geocache/internal/metrics"
	"github.com/mapflow/geocache/internal/middleware"
)

// SetupRouter wires the harness routes and middleware onto r.
func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, features *handlers.FeaturesHandler, stats *handlers.StatsHandler) {
	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.Timeout(60 * time.Second))

	// routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/collections/{id}/items", features.GetItems)
		r.Get("/stats", stats.GetStats)
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
