// Package api serves stored benchmark runs and Prometheus metrics over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/everstacklabs/brandscope/internal/store"
)

// NewRouter wires the run API, health check and metrics endpoint.
func NewRouter(st store.Store, gatherer prometheus.Gatherer, origins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(Recovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", Health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	h := &handlers{store: st}
	r.Route("/api/runs", func(api chi.Router) {
		api.Get("/", h.listRuns)
		api.Get("/{runID}", h.getRun)
		api.Get("/{runID}/results", h.listResults)
		api.Get("/{runID}/sources", h.listSources)
	})

	return r
}
