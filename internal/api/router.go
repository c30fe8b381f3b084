// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

// Package api serves the book search, reading history and recommendation
// endpoints over HTTP using the Chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/bookfinder/internal/auth"
)

// NewRouter builds the HTTP handler.
func NewRouter(h *Handler, jwt *auth.JWTManager, cfg *MiddlewareConfig) http.Handler {
	if cfg == nil {
		cfg = &MiddlewareConfig{}
	}

	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(cfg))
	r.Use(RequestLogger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusNotFound, ErrCodeNotFound, "Not found")
	})

	// ========================
	// Operational Endpoints
	// ========================
	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	// ========================
	// API
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(cfg))
		r.Use(PrometheusMetrics)
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Get("/search", h.Search)

		r.Route("/me", func(r chi.Router) {
			r.Use(jwt.Middleware(unauthorized))

			r.Get("/recommendations", h.Recommendations)
			if h.refresher != nil {
				r.Post("/recommendations/refresh", h.Refresh)
			}

			r.Get("/history", h.History)
			r.Post("/history", h.RecordHistory)
			r.Delete("/history", h.RemoveHistory)
		})
	})

	return r
}
