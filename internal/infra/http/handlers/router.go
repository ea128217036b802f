package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xavierca1/leadbuffer/internal/infra/http/middleware"
)

type RouterConfig struct {
	Leads          *LeadHandler
	Cursors        *CursorHandler
	Health         *HealthHandler
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Metrics)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.OrganizationHeader, IdempotencyHeader},
		ExposedHeaders: []string{"Idempotent-Replayed"},
	}))

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Handle)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Tenant)

		r.Post("/leads/push", cfg.Leads.HandlePush)
		r.Post("/leads/pull", cfg.Leads.HandlePull)
		r.Get("/leads/served", cfg.Leads.HandleListServed)
		r.Get("/leads/stats", cfg.Leads.HandleStats)

		r.Get("/cursors/{namespace}", cfg.Cursors.HandleGet)
		r.Put("/cursors/{namespace}", cfg.Cursors.HandlePut)
		r.Delete("/cursors/{namespace}", cfg.Cursors.HandleDelete)
	})

	return r
}
