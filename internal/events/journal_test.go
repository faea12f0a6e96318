// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package events

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/slackiveroo/internal/logging"
	"github.com/tomtom215/slackiveroo/internal/tracker"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// waitLogged publishes until want shows up in the journal output, since the
// journal subscribes asynchronously and GoChannel drops unsubscribed messages.
func waitLogged(t *testing.T, out *syncBuffer, want string, publish func()) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		publish()
		time.Sleep(20 * time.Millisecond)
		if strings.Contains(out.String(), want) {
			return
		}
	}
	t.Fatalf("journal never logged %q; output:\n%s", want, out.String())
}

func TestJournalLogsInProcessEvents(t *testing.T) {
	t.Parallel()

	p := newInProcess(t)
	out := &syncBuffer{}
	j := &Journal{pub: p, log: logging.NewTestLogger(out)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Serve(ctx) }()

	status := tracker.OrderStatus{Code: tracker.StatusInProgress, Message: "Cooking", Order: &tracker.OrderDetails{RestaurantName: "Pizza Palace"}}
	waitLogged(t, out, `"status":"IN_PROGRESS"`, func() {
		p.StatusChanged(context.Background(), "order-1", status, 2)
	})
	waitLogged(t, out, `"reason":"completed"`, func() {
		p.TrackingEnded(context.Background(), "order-1", tracker.EndCompleted)
	})

	logged := out.String()
	for _, want := range []string{`"order":"order-1"`, `"restaurant":"Pizza Palace"`, `"recipients":2`, "Order tracking ended"} {
		if !strings.Contains(logged, want) {
			t.Errorf("journal output missing %s:\n%s", want, logged)
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve after cancel = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestJournalDoesNotRestartWithoutSubscriber(t *testing.T) {
	t.Parallel()

	j := NewJournal(&Publisher{prefix: "nats"})
	if err := j.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve = %v, want ErrDoNotRestart", err)
	}
	if (&Publisher{}).InProcess() {
		t.Error("publisher without subscriber reported in process")
	}
	if !newInProcess(t).InProcess() {
		t.Error("GoChannel publisher not reported in process")
	}
	if j.String() != "event-journal" {
		t.Errorf("String = %q", j.String())
	}
}
