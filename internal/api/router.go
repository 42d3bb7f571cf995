// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/threatcanvas/threatcanvas/internal/middleware"
)

// Router assembles the HTTP routes for a Handler.
func Router(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	// Liveness and metrics stay outside the rate limiter so scrapers and
	// orchestrators never get throttled.
	r.Get("/healthz", h.Health)
	r.Get("/api/v1/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if !h.cfg.Limits.Disabled {
			r.Use(httprate.Limit(
				h.cfg.Limits.Requests,
				h.cfg.Limits.Window,
				httprate.WithKeyFuncs(httprate.KeyByIP),
			))
		}

		r.With(middleware.PrometheusMetrics).Get("/data", h.Data)

		// The stream handler hijacks the connection for the websocket
		// upgrade, so it bypasses the instrumentation wrapper.
		r.Get("/stream", h.Stream)
	})

	return r
}
