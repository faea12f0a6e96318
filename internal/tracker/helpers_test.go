// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var (
	d1 = Destination{TeamID: "T1", ChannelID: "C1"}
	d2 = Destination{TeamID: "T1", ChannelID: "C2"}
	d3 = Destination{TeamID: "T2", ChannelID: "C1"}
)

func orderStatus(code StatusCode, msg, eta string) OrderStatus {
	return OrderStatus{
		Code:    code,
		Message: msg,
		ETA:     eta,
		HasETA:  eta != "",
		Order: &OrderDetails{
			RestaurantName: "Pizza Palace",
			ImageURL:       "https://img.example/{w}x{h}.jpg",
			ShortURL:       "https://roo.it/s/abc",
		},
	}
}

type delivery struct {
	dest Destination
	n    Notification
}

type recordingNotifier struct {
	mu         sync.Mutex
	deliveries []delivery
	failFor    map[Destination]error
}

func (r *recordingNotifier) Deliver(_ context.Context, dest Destination, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, delivery{dest: dest, n: n})
	if err, ok := r.failFor[dest]; ok {
		return err
	}
	return nil
}

func (r *recordingNotifier) all() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}

func (r *recordingNotifier) countFor(d Destination) int {
	n := 0
	for _, del := range r.all() {
		if del.dest == d {
			n++
		}
	}
	return n
}

type fetchResult struct {
	status OrderStatus
	err    error
}

// scriptedSource returns the scripted results in order and fails once
// the script is exhausted.
type scriptedSource struct {
	mu     sync.Mutex
	script []fetchResult
	calls  int
}

func newScriptedSource(results ...fetchResult) *scriptedSource {
	return &scriptedSource{script: results}
}

func (s *scriptedSource) FetchStatus(_ context.Context, _ string) (OrderStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	s.calls++
	if idx >= len(s.script) {
		return OrderStatus{}, errors.New("script exhausted")
	}
	return s.script[idx].status, s.script[idx].err
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// manualClock replaces time.After so tests decide when the next poll runs.
type manualClock struct {
	mu    sync.Mutex
	waits int
	ch    chan time.Time
}

func newManualClock() *manualClock {
	return &manualClock{ch: make(chan time.Time)}
}

func (c *manualClock) After(time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits++
	c.mu.Unlock()
	return c.ch
}

func (c *manualClock) waitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waits
}

func (c *manualClock) tick(t *testing.T) {
	t.Helper()
	select {
	case c.ch <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("tracker was not waiting for the next poll")
	}
}

// captureLauncher records trackers without running them.
type captureLauncher struct {
	mu       sync.Mutex
	services []suture.Service
}

func (l *captureLauncher) Add(s suture.Service) suture.ServiceToken {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, s)
	return suture.ServiceToken{}
}

func (l *captureLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.services)
}

// goLauncher runs each service in a goroutine and reports what Serve
// returned.
type goLauncher struct {
	ctx  context.Context
	done chan error
}

func newGoLauncher(t *testing.T) *goLauncher {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &goLauncher{ctx: ctx, done: make(chan error, 16)}
}

func (l *goLauncher) Add(s suture.Service) suture.ServiceToken {
	go func() { l.done <- s.Serve(l.ctx) }()
	return suture.ServiceToken{}
}

func (l *goLauncher) result(t *testing.T) error {
	t.Helper()
	select {
	case err := <-l.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("tracker did not stop")
		return nil
	}
}

func startSupervisor(t *testing.T) *suture.Supervisor {
	t.Helper()
	sup := suture.NewSimple("trackers-test")
	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return sup
}

func staticResolver(endpoint string) Resolver {
	return ResolverFunc(func(context.Context, string) (string, error) {
		return endpoint, nil
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// settle gives a goroutine a moment to do something it should not do.
func settle() {
	time.Sleep(30 * time.Millisecond)
}
