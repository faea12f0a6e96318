// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package tracker

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/thejerf/suture/v4"
)

func newTestRegistry(t *testing.T, launcher Launcher, cfg Config) *Registry {
	t.Helper()
	if cfg.Resolver == nil {
		cfg.Resolver = staticResolver("https://api.example/orders/1")
	}
	reg, err := NewRegistry(launcher, cfg)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

// A tracker for order A notifies D1, stays quiet on a repeated message,
// catches up D2 as soon as it joins, then delivers the final status to
// both and deregisters without polling again.
func TestScenarioLateJoinAndCompletion(t *testing.T) {
	t.Parallel()

	clock := newManualClock()
	source := newScriptedSource(
		fetchResult{status: orderStatus(StatusInProgress, "Preparing", "12:30")},
		fetchResult{status: orderStatus(StatusInProgress, "Preparing", "12:30")},
		fetchResult{status: orderStatus(StatusCompleted, "Delivered", "")},
	)
	notifier := &recordingNotifier{}
	reg := newTestRegistry(t, startSupervisor(t), Config{
		Source:   source,
		Notifier: notifier,
		After:    clock.After,
	})
	dispatcher := NewDispatcher(reg)
	ctx := context.Background()

	outcome, err := dispatcher.OnOrderMentioned(ctx, "A", d1)
	if err != nil || outcome != OutcomeStarted {
		t.Fatalf("first mention: outcome=%v err=%v", outcome, err)
	}

	// Poll 1
	waitFor(t, "first delivery", func() bool { return notifier.count() == 1 })
	if first := notifier.all()[0]; first.dest != d1 || !strings.Contains(first.n.Text, "Preparing") {
		t.Fatalf("unexpected first delivery: %+v", first)
	}
	waitFor(t, "sleep after poll 1", func() bool { return clock.waitCount() == 1 })

	// Poll 2 repeats the message
	clock.tick(t)
	waitFor(t, "sleep after poll 2", func() bool { return clock.waitCount() == 2 })
	if got := notifier.count(); got != 1 {
		t.Fatalf("repeated message delivered again: %d deliveries", got)
	}

	// D2 joins between polls 2 and 3
	outcome, err = dispatcher.OnOrderMentioned(ctx, "A", d2)
	if err != nil || outcome != OutcomeMerged {
		t.Fatalf("second mention: outcome=%v err=%v", outcome, err)
	}
	waitFor(t, "catch-up for D2", func() bool { return notifier.countFor(d2) == 1 })
	if got := source.callCount(); got != 2 {
		t.Fatalf("catch-up waited for a poll: %d fetches", got)
	}
	if catchUp := notifier.all()[1]; !strings.Contains(catchUp.n.Text, "Preparing") {
		t.Errorf("catch-up text = %q, want current status", catchUp.n.Text)
	}

	// Poll 3 is terminal
	clock.tick(t)
	waitFor(t, "final deliveries", func() bool { return notifier.count() == 4 })
	waitFor(t, "deregistration", func() bool { return reg.Len() == 0 })

	final := notifier.all()[2:]
	seen := map[Destination]bool{}
	for _, d := range final {
		seen[d.dest] = true
		if !strings.Contains(d.n.Text, "is here") {
			t.Errorf("final text = %q", d.n.Text)
		}
	}
	if !seen[d1] || !seen[d2] {
		t.Errorf("final round reached %v, want D1 and D2", seen)
	}

	settle()
	if got := source.callCount(); got != 3 {
		t.Errorf("fetches = %d, want 3 (no poll after terminal)", got)
	}
	if got := clock.waitCount(); got != 2 {
		t.Errorf("sleeps = %d, want 2", got)
	}
}

func TestTrackerDetectsChangeByMessageOnly(t *testing.T) {
	t.Parallel()

	clock := newManualClock()
	source := newScriptedSource(
		fetchResult{status: orderStatus(StatusInProgress, "Preparing", "12:30")},
		fetchResult{status: orderStatus("DELIVERING", "Preparing", "12:30")},
		fetchResult{status: orderStatus(StatusInProgress, "Rider picked up your order", "12:35")},
		fetchResult{status: orderStatus(StatusCompleted, "Rider picked up your order", "12:35")},
	)
	notifier := &recordingNotifier{}
	reg := newTestRegistry(t, startSupervisor(t), Config{Source: source, Notifier: notifier, After: clock.After})
	reg.GetOrStart(context.Background(), "A", d1)

	waitFor(t, "sleep after poll 1", func() bool { return clock.waitCount() == 1 })
	clock.tick(t)
	waitFor(t, "sleep after poll 2", func() bool { return clock.waitCount() == 2 })
	if got := notifier.count(); got != 1 {
		t.Fatalf("code change without message change notified: %d deliveries", got)
	}

	clock.tick(t)
	waitFor(t, "sleep after poll 3", func() bool { return clock.waitCount() == 3 })
	if got := notifier.count(); got != 2 {
		t.Fatalf("new message with same code: %d deliveries, want 2", got)
	}

	clock.tick(t)
	waitFor(t, "deregistration", func() bool { return reg.Len() == 0 })
	if got := notifier.count(); got != 2 {
		t.Errorf("terminal status with unchanged message notified: %d deliveries", got)
	}
}

func TestTrackerDeliveryFailureIsIsolated(t *testing.T) {
	t.Parallel()

	clock := newManualClock()
	source := newScriptedSource(
		fetchResult{status: orderStatus(StatusInProgress, "Preparing", "12:30")},
		fetchResult{status: orderStatus(StatusInProgress, "On its way", "12:40")},
	)
	notifier := &recordingNotifier{failFor: map[Destination]error{d1: errors.New("channel_not_found")}}
	launcher := &captureLauncher{}
	reg := newTestRegistry(t, launcher, Config{Source: source, Notifier: notifier, After: clock.After})

	ctx := context.Background()
	reg.GetOrStart(ctx, "A", d1)
	reg.GetOrStart(ctx, "A", d2)
	reg.GetOrStart(ctx, "A", d3)

	tr, _ := reg.Get("A")
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = tr.Serve(runCtx) }()

	waitFor(t, "first round", func() bool { return notifier.count() == 3 })
	for _, d := range []Destination{d1, d2, d3} {
		if notifier.countFor(d) != 1 {
			t.Errorf("destination %s got %d deliveries, want 1", d, notifier.countFor(d))
		}
	}

	// Polling continues after a failed delivery.
	waitFor(t, "sleep after poll 1", func() bool { return clock.waitCount() == 1 })
	clock.tick(t)
	waitFor(t, "second round", func() bool { return notifier.count() == 6 })
}

func TestTrackerFetchErrorIsRecoverable(t *testing.T) {
	t.Parallel()

	clock := newManualClock()
	source := newScriptedSource(
		fetchResult{err: errors.New("connection reset")},
		fetchResult{err: errors.New("status 503")},
		fetchResult{status: orderStatus(StatusCompleted, "Delivered", "")},
	)
	notifier := &recordingNotifier{}
	launcher := newGoLauncher(t)
	reg := newTestRegistry(t, launcher, Config{Source: source, Notifier: notifier, After: clock.After})
	reg.GetOrStart(context.Background(), "A", d1)

	waitFor(t, "sleep after failed poll 1", func() bool { return clock.waitCount() == 1 })
	if reg.Len() != 1 {
		t.Fatal("tracker must stay registered after a fetch error")
	}
	clock.tick(t)
	waitFor(t, "sleep after failed poll 2", func() bool { return clock.waitCount() == 2 })
	clock.tick(t)

	if err := launcher.result(t); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Fatalf("Serve returned %v, want ErrDoNotRestart", err)
	}
	if notifier.count() != 1 {
		t.Errorf("deliveries = %d, want 1", notifier.count())
	}
	if reg.Len() != 0 {
		t.Error("tracker still registered after completion")
	}
}

func TestTrackerResolutionFailure(t *testing.T) {
	t.Parallel()

	source := newScriptedSource()
	notifier := &recordingNotifier{}
	launcher := newGoLauncher(t)
	reg := newTestRegistry(t, launcher, Config{
		Resolver: ResolverFunc(func(context.Context, string) (string, error) {
			return "", errors.New("unexpected status 404")
		}),
		Source:   source,
		Notifier: notifier,
	})
	reg.GetOrStart(context.Background(), "https://roo.it/s/broken", d1)

	if err := launcher.result(t); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Fatalf("Serve returned %v, want ErrDoNotRestart", err)
	}
	if reg.Len() != 0 {
		t.Error("tracker with a broken link must be removed")
	}
	if source.callCount() != 0 || notifier.count() != 0 {
		t.Errorf("fetches=%d deliveries=%d, want none", source.callCount(), notifier.count())
	}
}

func TestTrackerFailedIsTerminal(t *testing.T) {
	t.Parallel()

	source := newScriptedSource(fetchResult{status: orderStatus(StatusFailed, "Restaurant closed", "")})
	notifier := &recordingNotifier{}
	launcher := newGoLauncher(t)
	reg := newTestRegistry(t, launcher, Config{Source: source, Notifier: notifier})
	reg.GetOrStart(context.Background(), "A", d1)

	if err := launcher.result(t); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Fatalf("Serve returned %v", err)
	}
	if source.callCount() != 1 {
		t.Errorf("fetches = %d, want 1", source.callCount())
	}
	del := notifier.all()
	if len(del) != 1 || !strings.Contains(del[0].n.Text, "*FAILED*") {
		t.Errorf("unexpected deliveries: %+v", del)
	}
}

func TestTrackerMalformedStatusIsRetried(t *testing.T) {
	t.Parallel()

	clock := newManualClock()
	broken := orderStatus(StatusInProgress, "Preparing", "12:30")
	broken.Order = nil
	source := newScriptedSource(
		fetchResult{status: broken},
		fetchResult{status: orderStatus(StatusInProgress, "Preparing", "12:30")},
	)
	notifier := &recordingNotifier{}
	reg := newTestRegistry(t, newGoLauncher(t), Config{Source: source, Notifier: notifier, After: clock.After})
	reg.GetOrStart(context.Background(), "A", d1)

	waitFor(t, "sleep after poll 1", func() bool { return clock.waitCount() == 1 })
	if notifier.count() != 0 {
		t.Fatal("malformed status must not be delivered")
	}
	clock.tick(t)
	waitFor(t, "delivery on retry", func() bool { return notifier.count() == 1 })
}

func TestTrackerUnrenderableTerminalStatusKeepsTracking(t *testing.T) {
	t.Parallel()

	clock := newManualClock()
	broken := orderStatus(StatusCompleted, "Enjoy", "")
	broken.Order = nil
	source := newScriptedSource(
		fetchResult{status: broken},
		fetchResult{status: orderStatus(StatusCompleted, "Enjoy", "")},
	)
	notifier := &recordingNotifier{}
	reg := newTestRegistry(t, newGoLauncher(t), Config{Source: source, Notifier: notifier, After: clock.After})
	reg.GetOrStart(context.Background(), "A", d1)

	waitFor(t, "sleep after poll 1", func() bool { return clock.waitCount() == 1 })
	if reg.Len() != 1 {
		t.Fatal("tracker ended on a status it could not announce")
	}
	clock.tick(t)
	waitFor(t, "tracker removed", func() bool { return reg.Len() == 0 })
	if notifier.count() != 1 {
		t.Errorf("deliveries = %d, want 1", notifier.count())
	}
}

func TestTrackerDuplicateMentionHasNoCatchUp(t *testing.T) {
	t.Parallel()

	clock := newManualClock()
	source := newScriptedSource(fetchResult{status: orderStatus(StatusInProgress, "Preparing", "12:30")})
	notifier := &recordingNotifier{}
	reg := newTestRegistry(t, newGoLauncher(t), Config{Source: source, Notifier: notifier, After: clock.After})
	ctx := context.Background()

	reg.GetOrStart(ctx, "A", d1)
	waitFor(t, "sleep after poll 1", func() bool { return clock.waitCount() == 1 })

	if got := reg.GetOrStart(ctx, "A", d1); got != OutcomeDuplicate {
		t.Fatalf("outcome = %v, want duplicate", got)
	}
	settle()
	if notifier.count() != 1 {
		t.Errorf("deliveries = %d, want 1", notifier.count())
	}
}

func TestTrackerJoinBeforeFirstPollGetsFirstRound(t *testing.T) {
	t.Parallel()

	clock := newManualClock()
	source := newScriptedSource(fetchResult{status: orderStatus(StatusInProgress, "Preparing", "12:30")})
	notifier := &recordingNotifier{}
	launcher := &captureLauncher{}
	reg := newTestRegistry(t, launcher, Config{Source: source, Notifier: notifier, After: clock.After})
	ctx := context.Background()

	reg.GetOrStart(ctx, "A", d1)
	if got := reg.GetOrStart(ctx, "A", d2); got != OutcomeMerged {
		t.Fatalf("outcome = %v, want merged", got)
	}

	tr, _ := reg.Get("A")
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = tr.Serve(runCtx) }()

	waitFor(t, "sleep after poll 1", func() bool { return clock.waitCount() == 1 })
	if notifier.countFor(d1) != 1 || notifier.countFor(d2) != 1 {
		t.Errorf("deliveries = %+v, want one each", notifier.all())
	}
}

func TestTrackerStopsOnCancel(t *testing.T) {
	t.Parallel()

	source := newScriptedSource(fetchResult{status: orderStatus(StatusInProgress, "Preparing", "12:30")})
	clock := newManualClock()
	reg := newTestRegistry(t, &captureLauncher{}, Config{Source: source, Notifier: &recordingNotifier{}, After: clock.After})
	reg.GetOrStart(context.Background(), "A", d1)
	tr, _ := reg.Get("A")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Serve(ctx) }()

	waitFor(t, "sleep after poll 1", func() bool { return clock.waitCount() == 1 })
	if tr.State() != StatePolling {
		t.Errorf("state = %v, want polling", tr.State())
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve returned %v, want context.Canceled", err)
	}
}

func TestTrackerRecoversFromPanicWithoutReresolving(t *testing.T) {
	t.Parallel()

	var resolves atomic.Int32
	var panicked atomic.Bool
	clock := newManualClock()
	source := newScriptedSource(
		fetchResult{status: orderStatus(StatusInProgress, "Preparing", "12:30")},
		fetchResult{status: orderStatus(StatusCompleted, "Delivered", "")},
	)
	notifier := &recordingNotifier{}
	reg := newTestRegistry(t, startSupervisor(t), Config{
		Resolver: ResolverFunc(func(context.Context, string) (string, error) {
			resolves.Add(1)
			return "endpoint", nil
		}),
		Source: source,
		Notifier: NotifierFunc(func(ctx context.Context, d Destination, n Notification) error {
			if panicked.CompareAndSwap(false, true) {
				panic("slack client bug")
			}
			return notifier.Deliver(ctx, d, n)
		}),
		After: clock.After,
	})
	reg.GetOrStart(context.Background(), "A", d1)

	// The first delivery panics; the supervisor restarts the tracker,
	// which polls again and delivers the completed status.
	waitFor(t, "delivery after restart", func() bool { return notifier.count() == 1 })
	waitFor(t, "deregistration", func() bool { return reg.Len() == 0 })
	if got := resolves.Load(); got != 1 {
		t.Errorf("resolver called %d times, want 1", got)
	}
	if got := notifier.all()[0].n.Text; !strings.Contains(got, "is here") {
		t.Errorf("delivered %q, want the completed status", got)
	}
}

func TestTrackerInfo(t *testing.T) {
	t.Parallel()

	clock := newManualClock()
	source := newScriptedSource(fetchResult{status: orderStatus(StatusInProgress, "Preparing", "12:30")})
	reg := newTestRegistry(t, newGoLauncher(t), Config{Source: source, Notifier: &recordingNotifier{}, After: clock.After})
	reg.GetOrStart(context.Background(), "A", d1)
	waitFor(t, "sleep after poll 1", func() bool { return clock.waitCount() == 1 })

	infos := reg.Snapshot()
	if len(infos) != 1 {
		t.Fatalf("snapshot has %d entries", len(infos))
	}
	info := infos[0]
	if info.Key != "A" || info.State != "polling" || info.Status != StatusInProgress || info.Message != "Preparing" {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.LastPollAt == nil || len(info.Destinations) != 1 {
		t.Errorf("unexpected info: %+v", info)
	}
}
