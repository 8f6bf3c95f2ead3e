// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

// Package api provides the HTTP surface of Golazod: fixture reads,
// cache control, image resolution, WebSocket fan-out, health and
// Prometheus metrics, routed with Chi.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/golazo-live/golazod/internal/config"
)

// Router wires handlers and middleware into the Chi mux.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter creates the router from configuration.
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	mw := DefaultMiddlewareConfig()
	if cfg != nil {
		mw.CORSAllowedOrigins = cfg.Server.CORSOrigins
		mw.RateLimitRequests = cfg.Server.RateLimitReqs
		mw.RateLimitWindow = cfg.Server.RateLimitWindow
	}
	return &Router{
		handler:    handler,
		middleware: NewMiddleware(mw),
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware: applied to all routes in order. CORS must be
	// global to handle OPTIONS preflight.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogging())
	r.Use(router.middleware.CORS())

	// Health endpoints get a permissive limiter so monitoring does not
	// consume the API budget.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.middleware.RateLimitHealth())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())

		r.Get("/fixtures", router.handler.Fixtures)
		r.Post("/fixtures/refresh", router.handler.RefreshFixtures)
		r.Post("/fixtures/prefetch", router.handler.Prefetch)
		r.Get("/leagues", router.handler.Leagues)

		r.Get("/cache/stats", router.handler.CacheStats)
		r.Delete("/cache", router.handler.ClearCache)

		r.Get("/images/resolve", router.handler.ResolveImage)
		r.Post("/images/prewarm", router.handler.PreWarmImages)
		r.Get("/images/stats", router.handler.ImageStats)
		r.Delete("/images", router.handler.ClearImages)

		r.Get("/ws", router.handler.WebSocket)
	})

	// Prometheus metrics, outside the API rate limit.
	r.Handle("/metrics", promhttp.Handler())

	return r
}
