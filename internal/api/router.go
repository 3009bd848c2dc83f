package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(handler *Handler, health *HealthHandler, maxConcurrent int, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware (applied to all routes)
	r.Use(RecoveryMiddleware(logger))
	r.Use(CORSMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	// Health and metrics endpoints are registered BEFORE the rate limiter
	// so Kubernetes probes and Prometheus scrapes are never rejected under load.
	r.Get("/healthz", health.Liveness)
	r.Get("/readyz", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Rate limiter only applies to API routes below
	r.Group(func(r chi.Router) {
		rl := NewRateLimiter(maxConcurrent, logger)
		r.Use(rl.Middleware)

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", handler.CreateSession)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", handler.GetSession)
					r.Delete("/", handler.DeleteSession)
					r.Put("/category", handler.SetCategory)
					r.Put("/location", handler.SetLocation)
					r.Post("/location/select", handler.SelectLocation)
					r.Post("/search", handler.Search)
					r.Put("/page", handler.SetPage)
				})
			})
			r.Get("/suggest", handler.Suggest)
			r.Get("/metadata", handler.Metadata)
			r.Get("/etablissements/{id}", handler.EstablishmentDetail)
		})
	})

	return r
}
