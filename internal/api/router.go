// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds the HTTP handler tree.
type Router struct {
	handler *Handler
}

// NewRouter creates a router over the wired handlers.
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// Setup configures all routes and the global middleware stack.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.handler.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/health", func(r chi.Router) {
			r.Use(httprate.LimitByIP(1000, time.Minute))
			r.Get("/live", router.handler.HealthLive)
			r.Get("/ready", router.handler.HealthReady)
		})

		// The WebSocket route skips the REST rate limiter; message
		// throughput is limited per-connection inside the session.
		r.With(prometheusMetrics).Get("/ws", router.handler.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(100, time.Minute))
			r.Use(prometheusMetrics)
			r.Get("/status", router.handler.Status)
			r.Post("/rooms/{roomID}/events", router.handler.EmitEvent)
			r.Get("/rooms/{roomID}/typing", router.handler.RoomTyping)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
