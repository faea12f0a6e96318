// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package tracker

import (
	"context"
	"strings"

	"github.com/tomtom215/slackiveroo/internal/logging"
	"github.com/tomtom215/slackiveroo/internal/metrics"
)

// Dispatcher is the entry point for order mentions.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher returns a Dispatcher backed by registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// OnOrderMentioned records that dest wants updates for the order behind
// sharingRef. It only does registry bookkeeping; resolution, polling and
// delivery happen in the tracker.
func (d *Dispatcher) OnOrderMentioned(ctx context.Context, sharingRef string, dest Destination) (Outcome, error) {
	key, err := NormalizeReference(sharingRef)
	if err != nil {
		metrics.Mentions.WithLabelValues("rejected").Inc()
		return 0, err
	}
	if !dest.Valid() {
		metrics.Mentions.WithLabelValues("rejected").Inc()
		return 0, ErrInvalidDestination
	}

	outcome := d.registry.GetOrStart(ctx, key, dest)
	metrics.Mentions.WithLabelValues(outcome.String()).Inc()

	logging.Ctx(ctx).Info().
		Str("order", string(key)).
		Stringer("destination", dest).
		Stringer("outcome", outcome).
		Msg("Order mentioned")
	return outcome, nil
}

// NormalizeReference turns a raw sharing reference into an OrderKey. Slack
// link markup such as <https://roo.it/s/x|roo.it/s/x> is stripped.
func NormalizeReference(ref string) (OrderKey, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "<") && strings.HasSuffix(ref, ">") {
		ref = ref[1 : len(ref)-1]
		ref, _, _ = strings.Cut(ref, "|")
		ref = strings.TrimSpace(ref)
	}
	if ref == "" {
		return "", ErrEmptyReference
	}
	return OrderKey(ref), nil
}
