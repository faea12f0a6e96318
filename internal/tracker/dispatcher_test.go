// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/slackiveroo/internal/logging"
	"github.com/tomtom215/slackiveroo/internal/metrics"
)

func TestNormalizeReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    OrderKey
		wantErr error
	}{
		{"https://roo.it/s/abc", "https://roo.it/s/abc", nil},
		{"  https://roo.it/s/abc\n", "https://roo.it/s/abc", nil},
		{"<https://roo.it/s/abc>", "https://roo.it/s/abc", nil},
		{"<https://roo.it/s/abc|roo.it/s/abc>", "https://roo.it/s/abc", nil},
		{"", "", ErrEmptyReference},
		{"   ", "", ErrEmptyReference},
		{"<>", "", ErrEmptyReference},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeReference(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDispatcherRejectsBadInput(t *testing.T) {
	t.Parallel()

	launcher := &captureLauncher{}
	reg := newTestRegistry(t, launcher, Config{Source: newScriptedSource(), Notifier: &recordingNotifier{}})
	disp := NewDispatcher(reg)
	ctx := context.Background()

	if _, err := disp.OnOrderMentioned(ctx, " ", d1); !errors.Is(err, ErrEmptyReference) {
		t.Errorf("blank reference: err = %v", err)
	}
	if _, err := disp.OnOrderMentioned(ctx, "https://roo.it/s/x", Destination{TeamID: "T1"}); !errors.Is(err, ErrInvalidDestination) {
		t.Errorf("invalid destination: err = %v", err)
	}
	if launcher.count() != 0 {
		t.Error("rejected mentions must not start trackers")
	}
}

func TestDispatcherSameLinkMergesAcrossMarkup(t *testing.T) {
	t.Parallel()

	launcher := &captureLauncher{}
	reg := newTestRegistry(t, launcher, Config{Source: newScriptedSource(), Notifier: &recordingNotifier{}})
	disp := NewDispatcher(reg)
	ctx := logging.ContextWithCorrelationID(context.Background(), "abcd1234")

	mergedBefore := testutil.ToFloat64(metrics.Mentions.WithLabelValues("merged"))

	if o, err := disp.OnOrderMentioned(ctx, "https://roo.it/s/xyz", d1); err != nil || o != OutcomeStarted {
		t.Fatalf("first: %v %v", o, err)
	}
	if o, err := disp.OnOrderMentioned(ctx, "<https://roo.it/s/xyz|roo.it/s/xyz>", d2); err != nil || o != OutcomeMerged {
		t.Fatalf("second: %v %v", o, err)
	}
	if launcher.count() != 1 {
		t.Errorf("launched %d trackers, want 1", launcher.count())
	}
	if got := testutil.ToFloat64(metrics.Mentions.WithLabelValues("merged")) - mergedBefore; got < 1 {
		t.Errorf("merged mentions delta = %v, want >= 1", got)
	}
}
