// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package keepalive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/slackiveroo/internal/config"
)

type fixedCount struct{ n atomic.Int32 }

func (f *fixedCount) Len() int { return int(f.n.Load()) }

func pingServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("pong"))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestDisabledWithoutURL(t *testing.T) {
	t.Parallel()

	s := New(config.KeepaliveConfig{}, &fixedCount{})
	if err := s.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve = %v, want ErrDoNotRestart", err)
	}
}

func TestPingsOnlyWhileTracking(t *testing.T) {
	t.Parallel()

	srv, hits := pingServer(t, http.StatusOK)
	count := &fixedCount{}
	s := New(config.KeepaliveConfig{URL: srv.URL + "/ping", Interval: 10 * time.Millisecond}, count)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	time.Sleep(60 * time.Millisecond)
	if n := hits.Load(); n != 0 {
		t.Errorf("pinged %d times with no trackers", n)
	}

	count.n.Store(2)
	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hits.Load() == 0 {
		t.Error("no ping while trackers are active")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestPingRequires200(t *testing.T) {
	t.Parallel()

	srv, _ := pingServer(t, http.StatusServiceUnavailable)
	s := New(config.KeepaliveConfig{URL: srv.URL}, &fixedCount{})
	if err := s.Ping(context.Background()); err == nil {
		t.Error("expected error for 503")
	}

	ok, _ := pingServer(t, http.StatusOK)
	s = New(config.KeepaliveConfig{URL: ok.URL}, &fixedCount{})
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
