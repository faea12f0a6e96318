// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/slackiveroo/internal/logging"
	"github.com/tomtom215/slackiveroo/internal/metrics"
)

// DefaultPollInterval is the wait between two status polls.
const DefaultPollInterval = 15 * time.Second

// Notification kinds used in logs and metrics.
const (
	kindUpdate  = "update"
	kindCatchUp = "catchup"
)

// End reasons reported to metrics and events.
const (
	EndCompleted       = "completed"
	EndFailed          = "failed"
	EndResolutionError = "resolution_error"
)

// State is the lifecycle state of a Tracker.
type State int32

const (
	StateStarting State = iota
	StatePolling
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StatePolling:
		return "polling"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config carries the collaborators and timing shared by all trackers.
type Config struct {
	Resolver     Resolver
	Source       StatusSource
	Notifier     Notifier
	Events       EventSink
	Formatter    Formatter
	PollInterval time.Duration

	// After returns a channel that fires once d has elapsed. Defaults to
	// time.After.
	After func(d time.Duration) <-chan time.Time
}

func (c *Config) validate() error {
	switch {
	case c.Resolver == nil:
		return fmt.Errorf("tracker config: resolver is required")
	case c.Source == nil:
		return fmt.Errorf("tracker config: status source is required")
	case c.Notifier == nil:
		return fmt.Errorf("tracker config: notifier is required")
	}
	if c.Events == nil {
		c.Events = nopEvents{}
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.After == nil {
		c.After = time.After
	}
	return nil
}

type remover interface {
	Remove(key OrderKey, t *Tracker) bool
}

// Tracker follows one order until it is COMPLETED or FAILED. It is a
// suture.Service; Serve returns suture.ErrDoNotRestart once tracking is
// over. If Serve panics the supervisor restarts it and the tracker
// continues from its recorded state.
type Tracker struct {
	key          OrderKey
	cfg          *Config
	owner        remover
	log          zerolog.Logger
	destinations *DestinationSet
	nudge        chan struct{}
	startedAt    time.Time

	mu           sync.Mutex
	state        State
	endpoint     string
	lastStatus   *OrderStatus
	lastNotified *string
	lastPollAt   time.Time
	// pending holds destinations that joined after the last fan-out and
	// are owed a catch-up message.
	pending []Destination
}

func newTracker(key OrderKey, first Destination, cfg *Config, owner remover, correlationID string) *Tracker {
	lc := logging.With().Str("component", "tracker").Str("order", string(key))
	if correlationID != "" {
		lc = lc.Str("correlation_id", correlationID)
	}
	return &Tracker{
		key:          key,
		cfg:          cfg,
		owner:        owner,
		log:          lc.Logger(),
		destinations: NewDestinationSet(first),
		nudge:        make(chan struct{}, 1),
		startedAt:    time.Now(),
		state:        StateStarting,
	}
}

// Key returns the order key.
func (t *Tracker) Key() OrderKey { return t.key }

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Destinations returns a snapshot of the destination set.
func (t *Tracker) Destinations() []Destination {
	return t.destinations.All()
}

func (t *Tracker) String() string {
	return "tracker " + string(t.key)
}

// AddDestination merges d into the tracker. When a status is already known
// and d is new, d is queued for a catch-up message which the tracker's own
// loop sends without waiting for the next poll.
func (t *Tracker) AddDestination(d Destination) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.destinations.Add(d) {
		return false
	}
	if t.lastStatus != nil {
		t.pending = append(t.pending, d)
		select {
		case t.nudge <- struct{}{}:
		default:
		}
	}
	return true
}

// Serve implements suture.Service.
func (t *Tracker) Serve(ctx context.Context) error {
	if t.needsResolution() {
		if err := t.resolve(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.log.Error().Err(err).Msg("Tracking aborted")
			t.finish(ctx, EndResolutionError)
			return suture.ErrDoNotRestart
		}
	}

	for {
		if status, ok := t.poll(ctx); ok && status.Terminal() {
			reason := EndCompleted
			if status.Code == StatusFailed {
				reason = EndFailed
			}
			t.finish(ctx, reason)
			return suture.ErrDoNotRestart
		}
		if err := t.wait(ctx); err != nil {
			return err
		}
	}
}

func (t *Tracker) needsResolution() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endpoint == ""
}

func (t *Tracker) resolve(ctx context.Context) error {
	endpoint, err := t.cfg.Resolver.Resolve(ctx, string(t.key))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResolution, err)
	}

	t.mu.Lock()
	t.endpoint = endpoint
	t.state = StatePolling
	t.mu.Unlock()

	t.log.Info().Str("endpoint", endpoint).Msg("Starting to track order")
	return nil
}

// poll runs one iteration: fetch, fan out on change, then send any owed
// catch-ups. ok is false when the fetch failed or a changed status could
// not be rendered, so a terminal status is only acted on once announced.
func (t *Tracker) poll(ctx context.Context) (status OrderStatus, ok bool) {
	start := time.Now()
	status, err := t.cfg.Source.FetchStatus(ctx, t.endpoint)
	elapsed := time.Since(start)
	if err != nil {
		metrics.RecordPoll(elapsed, false, err)
		if ctx.Err() == nil {
			t.log.Warn().Err(err).Dur("retry_in", t.cfg.PollInterval).Msg("Status poll failed")
		}
		return OrderStatus{}, false
	}

	changed, targets := t.observe(status)
	metrics.RecordPoll(elapsed, changed, nil)
	// An unrenderable status, terminal or not, keeps polling and is retried next tick.
	if changed && !t.fanOut(ctx, status, targets) {
		return status, false
	}
	t.drainPending(ctx)
	return status, true
}

// observe records status and, when its message differs from the last one
// delivered, returns the destinations to notify.
func (t *Tracker) observe(status OrderStatus) (bool, []Destination) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastStatus = &status
	t.lastPollAt = time.Now()
	if t.lastNotified != nil && *t.lastNotified == status.Message {
		return false, nil
	}
	// Everyone waiting for a catch-up is part of this round.
	t.pending = nil
	return true, t.destinations.All()
}

func (t *Tracker) fanOut(ctx context.Context, status OrderStatus, targets []Destination) bool {
	n, err := t.cfg.Formatter.Format(status)
	if err != nil {
		metrics.FormatErrors.Inc()
		t.log.Error().Err(err).Str("status", string(status.Code)).Msg("Cannot render order status, retrying on next poll")
		return false
	}

	t.log.Info().
		Str("status", string(status.Code)).
		Str("message", status.Message).
		Int("destinations", len(targets)).
		Msg("Order status changed")

	for _, d := range targets {
		t.deliver(ctx, d, n, kindUpdate)
	}

	msg := status.Message
	t.mu.Lock()
	t.lastNotified = &msg
	t.mu.Unlock()

	t.cfg.Events.StatusChanged(ctx, t.key, status, len(targets))
	return true
}

func (t *Tracker) drainPending(ctx context.Context) {
	t.mu.Lock()
	batch := t.pending
	t.pending = nil
	status := t.lastStatus
	t.mu.Unlock()

	if len(batch) == 0 || status == nil {
		return
	}

	n, err := t.cfg.Formatter.Format(*status)
	if err != nil {
		metrics.FormatErrors.Inc()
		t.log.Error().Err(err).Int("destinations", len(batch)).Msg("Cannot render catch-up status")
		return
	}
	for _, d := range batch {
		t.deliver(ctx, d, n, kindCatchUp)
	}
}

func (t *Tracker) deliver(ctx context.Context, d Destination, n Notification, kind string) {
	err := t.cfg.Notifier.Deliver(ctx, d, n)
	metrics.RecordNotification(kind, err)
	if err != nil {
		t.log.Warn().Err(err).Stringer("destination", d).Str("kind", kind).Msg("Notification not delivered")
		return
	}
	t.log.Debug().Stringer("destination", d).Str("kind", kind).Msg("Notification delivered")
}

// wait sleeps until the next poll, sending catch-ups as they are queued.
func (t *Tracker) wait(ctx context.Context) error {
	fire := t.cfg.After(t.cfg.PollInterval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-fire:
			return nil
		case <-t.nudge:
			t.drainPending(ctx)
		}
	}
}

// finish deregisters the tracker. Destinations merged after the final
// fan-out still get the final status.
func (t *Tracker) finish(ctx context.Context, reason string) {
	removed := t.owner.Remove(t.key, t)
	t.drainPending(ctx)

	t.mu.Lock()
	t.state = StateTerminated
	t.mu.Unlock()

	if removed {
		metrics.RecordTrackerEnded(reason)
	}
	t.cfg.Events.TrackingEnded(ctx, t.key, reason)
	t.log.Info().Str("reason", reason).Msg("Tracking has ended")
}

// Info is a read-only view of a tracker.
type Info struct {
	Key          OrderKey      `json:"key"`
	State        string        `json:"state"`
	Destinations []Destination `json:"destinations"`
	Status       StatusCode    `json:"status,omitempty"`
	Message      string        `json:"message,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	LastPollAt   *time.Time    `json:"last_poll_at,omitempty"`
}

// Info returns a snapshot of the tracker.
func (t *Tracker) Info() Info {
	t.mu.Lock()
	defer t.mu.Unlock()

	info := Info{
		Key:          t.key,
		State:        t.state.String(),
		Destinations: t.destinations.All(),
		StartedAt:    t.startedAt,
	}
	if t.lastStatus != nil {
		info.Status = t.lastStatus.Code
		info.Message = t.lastStatus.Message
	}
	if !t.lastPollAt.IsZero() {
		at := t.lastPollAt
		info.LastPollAt = &at
	}
	return info
}
