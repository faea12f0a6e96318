// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

/*
Package middleware provides the chi middleware used by the HTTP API.

  - RequestID: X-Request-ID propagation plus request and correlation ids in
    the request context for logging
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by chi route pattern
  - SlackSignature: rejects Events API requests whose v0 signature or
    timestamp does not verify, and hands the verified body on unchanged

The router in internal/api stacks them as:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.With(middleware.SlackSignature(secret, maxAge)).Post("/slack/event", h.SlackEvent)
*/
package middleware
