// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/tomtom215/slackiveroo/internal/logging"
	"github.com/tomtom215/slackiveroo/internal/metrics"
	"github.com/tomtom215/slackiveroo/internal/slack"
)

// maxSlackBody bounds signed request bodies. Slack events are a few KB.
const maxSlackBody = 1 << 20

// SlackSignature verifies the Slack v0 request signature before the
// handler runs. Failures answer 403 and never reach the handler.
func SlackSignature(secret string, maxAge time.Duration) func(http.Handler) http.Handler {
	return slackSignature(secret, maxAge, time.Now)
}

func slackSignature(secret string, maxAge time.Duration, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logging.Ctx(r.Context())

			body, err := io.ReadAll(io.LimitReader(r.Body, maxSlackBody+1))
			_ = r.Body.Close()
			if err != nil || len(body) > maxSlackBody {
				metrics.SignatureRejections.WithLabelValues("body").Inc()
				http.Error(w, "Invalid body", http.StatusBadRequest)
				return
			}

			signature := r.Header.Get(slack.HeaderSignature)
			timestamp := r.Header.Get(slack.HeaderTimestamp)
			if signature == "" || timestamp == "" {
				metrics.SignatureRejections.WithLabelValues("missing").Inc()
				log.Warn().Msg("Slack request cannot be authenticated: missing signature headers")
				http.Error(w, "You're not Slack", http.StatusForbidden)
				return
			}

			err = slack.VerifySignature(secret, signature, timestamp, body, now(), maxAge)
			switch {
			case errors.Is(err, slack.ErrStaleTimestamp):
				metrics.SignatureRejections.WithLabelValues("stale").Inc()
				log.Warn().Err(err).Str("timestamp", timestamp).Msg("Slack request cannot be authenticated")
				http.Error(w, "Invalid timestamp", http.StatusForbidden)
				return
			case err != nil:
				metrics.SignatureRejections.WithLabelValues("mismatch").Inc()
				log.Warn().Err(err).Msg("Slack request cannot be authenticated")
				http.Error(w, "You're not Slack", http.StatusForbidden)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			next.ServeHTTP(w, r)
		})
	}
}
