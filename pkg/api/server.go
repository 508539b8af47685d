// Package api is the HTTP facade over a btree.Tree: a chi router with
// API-key auth, CORS, and Prometheus instrumentation.
package api

import (
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kustomzone/hyperbee/pkg/btree"
)

// NewRouter builds the full route tree for tree: an unprotected
// /metrics endpoint for Prometheus scraping, and an API-key-protected
// /api/v1 group exposing health, get/put, and scan.
func NewRouter(tree *btree.Tree, config ServerConfig, metrics *Metrics) http.Handler {
	server := NewServer(tree, config, metrics)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(metrics.InstrumentAuthMiddleware(apiKeyMiddleware(config.APIKey)))

		r.Get("/health", metrics.InstrumentHandler("GET", "/api/v1/health", server.handleHealth))
		r.Put("/kv/{key}", metrics.InstrumentHandler("PUT", "/api/v1/kv/{key}", server.handlePut))
		r.Get("/kv/{key}", metrics.InstrumentHandler("GET", "/api/v1/kv/{key}", server.handleGet))
		r.Get("/scan", metrics.InstrumentHandler("GET", "/api/v1/scan", server.handleScan))
	})

	return r
}

// StartServer builds the router and blocks serving it on config.Bind:Port.
func StartServer(tree *btree.Tree, config ServerConfig) error {
	metrics := NewMetrics()
	r := NewRouter(tree, config, metrics)

	addr := net.JoinHostPort(config.Bind, fmt.Sprintf("%d", config.Port))
	log.Printf("hyperbee serving on %s (metrics at /metrics)", addr)
	return http.ListenAndServe(addr, r)
}
