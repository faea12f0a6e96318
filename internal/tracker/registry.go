// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package tracker

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/slackiveroo/internal/logging"
	"github.com/tomtom215/slackiveroo/internal/metrics"
)

// Outcome says what a mention did to the registry.
type Outcome int

const (
	// OutcomeStarted means a new tracker was created.
	OutcomeStarted Outcome = iota
	// OutcomeMerged means the destination joined a running tracker.
	OutcomeMerged
	// OutcomeDuplicate means the destination was already tracking the order.
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeMerged:
		return "merged"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Registry owns the table of live trackers, at most one per OrderKey.
// Trackers are launched on the Launcher (normally the trackers
// supervisor) and remove themselves when they end.
type Registry struct {
	cfg      Config
	launcher Launcher
	log      zerolog.Logger

	mu       sync.Mutex
	trackers map[OrderKey]*Tracker
}

// NewRegistry validates cfg and returns an empty registry.
func NewRegistry(launcher Launcher, cfg Config) (*Registry, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Registry{
		cfg:      cfg,
		launcher: launcher,
		log:      logging.WithComponent("registry"),
		trackers: make(map[OrderKey]*Tracker),
	}, nil
}

// GetOrStart merges dest into the tracker for key, or creates and launches
// one. Concurrent calls for the same key create exactly one tracker.
func (r *Registry) GetOrStart(ctx context.Context, key OrderKey, dest Destination) Outcome {
	r.mu.Lock()
	if t, ok := r.trackers[key]; ok {
		added := t.AddDestination(dest)
		r.mu.Unlock()
		if !added {
			return OutcomeDuplicate
		}
		r.log.Debug().Str("order", string(key)).Stringer("destination", dest).Msg("Destination merged into running tracker")
		return OutcomeMerged
	}

	t := newTracker(key, dest, &r.cfg, r, logging.CorrelationIDFromContext(ctx))
	r.trackers[key] = t
	r.mu.Unlock()

	metrics.RecordTrackerStarted()
	r.launcher.Add(t)
	return OutcomeStarted
}

// Remove deletes key if it is still mapped to t. It reports whether an
// entry was removed.
func (r *Registry) Remove(key OrderKey, t *Tracker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.trackers[key]
	if !ok || cur != t {
		return false
	}
	delete(r.trackers, key)
	return true
}

// Get returns the live tracker for key.
func (r *Registry) Get(key OrderKey) (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[key]
	return t, ok
}

// Len returns the number of live trackers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}

// Snapshot returns every live tracker, oldest first.
func (r *Registry) Snapshot() []Info {
	r.mu.Lock()
	trackers := make([]*Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		trackers = append(trackers, t)
	}
	r.mu.Unlock()

	out := make([]Info, len(trackers))
	for i, t := range trackers {
		out[i] = t.Info()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
