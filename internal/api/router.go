// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/slackiveroo/internal/middleware"
)

// RouterConfig holds the settings the router needs beyond the handler.
type RouterConfig struct {
	SigningSecret   string
	SignatureMaxAge time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// NewRouter builds the chi router.
//
// Slack event deliveries are not rate limited: they all come from a
// handful of Slack addresses and are authenticated by signature instead.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	limit := rateLimit(cfg)

	r.With(chimiddleware.Compress(5), APISecurityHeaders()).Get("/", h.Home)
	r.Get("/ping", h.Ping)

	r.Route("/slack", func(r chi.Router) {
		r.With(middleware.SlackSignature(cfg.SigningSecret, cfg.SignatureMaxAge)).Post("/event", h.SlackEvent)
		r.With(limit).Get("/oauth", h.SlackOAuth)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(limit)
		r.Use(APISecurityHeaders())
		r.Get("/health", h.Health)
		r.Get("/trackers", h.Trackers)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func rateLimit(cfg RouterConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow)
}

// APISecurityHeaders sets the response headers browsers use to harden
// pages and JSON responses.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// Behind a TLS-terminating proxy r.TLS is nil.
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
