// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracker metrics
	TrackersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slackiveroo_trackers_active",
			Help: "Number of order trackers currently registered",
		},
	)

	TrackersStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slackiveroo_trackers_started_total",
			Help: "Total number of order trackers created",
		},
	)

	TrackersEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slackiveroo_trackers_ended_total",
			Help: "Total number of order trackers that stopped",
		},
		[]string{"reason"}, // completed, failed, resolution_error, canceled
	)

	Mentions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slackiveroo_mentions_total",
			Help: "Total number of order mentions received",
		},
		[]string{"outcome"}, // started, merged, duplicate, rejected
	)

	Polls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slackiveroo_polls_total",
			Help: "Total number of order status polls",
		},
		[]string{"result"}, // changed, unchanged, error
	)

	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slackiveroo_poll_duration_seconds",
			Help:    "Duration of order status fetches in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slackiveroo_notifications_total",
			Help: "Total number of Slack notifications attempted",
		},
		[]string{"kind", "result"}, // kind: update, catchup; result: success, error
	)

	FormatErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slackiveroo_format_errors_total",
			Help: "Total number of order statuses that could not be rendered",
		},
	)

	// Slack API metrics
	SlackAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slackiveroo_slack_api_calls_total",
			Help: "Total number of Slack Web API calls",
		},
		[]string{"method", "result"},
	)

	SlackChannelJoins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slackiveroo_slack_channel_joins_total",
			Help: "Total number of channels joined after not_in_channel",
		},
	)

	OAuthInstalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slackiveroo_oauth_installs_total",
			Help: "Total number of OAuth code exchanges",
		},
		[]string{"result"},
	)

	SignatureRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slackiveroo_signature_rejections_total",
			Help: "Total number of inbound requests rejected by signature verification",
		},
		[]string{"reason"}, // missing, stale, mismatch
	)

	// Event publishing
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slackiveroo_events_published_total",
			Help: "Total number of lifecycle events published",
		},
		[]string{"topic", "result"},
	)

	KeepalivePings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slackiveroo_keepalive_pings_total",
			Help: "Total number of keepalive self-pings",
		},
		[]string{"result"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordPoll records one status fetch. changed is ignored when err != nil.
func RecordPoll(duration time.Duration, changed bool, err error) {
	PollDuration.Observe(duration.Seconds())
	switch {
	case err != nil:
		Polls.WithLabelValues("error").Inc()
	case changed:
		Polls.WithLabelValues("changed").Inc()
	default:
		Polls.WithLabelValues("unchanged").Inc()
	}
}

// RecordNotification records one delivery attempt of the given kind.
func RecordNotification(kind string, err error) {
	Notifications.WithLabelValues(kind, resultLabel(err)).Inc()
}

// RecordTrackerEnded decrements the active gauge and counts the reason.
func RecordTrackerEnded(reason string) {
	TrackersActive.Dec()
	TrackersEnded.WithLabelValues(reason).Inc()
}

// RecordTrackerStarted increments the active gauge.
func RecordTrackerStarted() {
	TrackersActive.Inc()
	TrackersStarted.Inc()
}

// RecordSlackCall records one Slack Web API call.
func RecordSlackCall(method string, err error) {
	SlackAPICalls.WithLabelValues(method, resultLabel(err)).Inc()
}

// RecordEventPublished records one lifecycle event publish.
func RecordEventPublished(topic string, err error) {
	EventsPublished.WithLabelValues(topic, resultLabel(err)).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
