// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flipmoo/begripp-sub003/internal/config"
	"github.com/flipmoo/begripp-sub003/internal/metrics"
)

// NewRouter builds the chi router with the global middleware stack and
// every API route mounted.
func NewRouter(h *Handlers, cfg *config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	rateLimitReqs := cfg.RateLimitReqs
	if rateLimitReqs <= 0 {
		rateLimitReqs = 100
	}
	rateLimitWindow := cfg.RateLimitWindow
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}

	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateLimitReqs, rateLimitWindow))

		r.Post("/sync", h.handleSyncAll)
		r.Post("/sync/{entity}", h.handleSyncEntity)
		r.Get("/sync/status", h.handleSyncStatus)

		r.Delete("/cache", h.handleCacheClear)
		r.Get("/cache/stats", h.handleCacheStats)

		r.Get("/employees", h.handleEmployees)
		r.Get("/hours/summary", h.handleHoursSummary)
	})

	return r
}

// requestMetrics records per-route latency with the status class.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		statusClass := strconv.Itoa(ww.Status()/100) + "xx"
		metrics.HTTPRequestDuration.WithLabelValues(route, statusClass).Observe(time.Since(start).Seconds())
	})
}
