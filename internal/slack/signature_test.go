// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package slack

import (
	"errors"
	"math"
	"strconv"
	"testing"
	"time"
)

func TestSignKnownVector(t *testing.T) {
	t.Parallel()

	// Example from Slack's request verification documentation.
	secret := "8f742231b10e8888abcd99yyyzzz85a5"
	body := []byte("token=xyzz0WbapA4vBCDEFasx0q6G&team_id=T1DC2JH3J&team_domain=testteamnow&channel_id=G8PSS9T3V&channel_name=foobar&user_id=U2CERLKJA&user_name=roadrunner&command=%2Fwebhook-collect&text=&response_url=https%3A%2F%2Fhooks.slack.com%2Fcommands%2FT1DC2JH3J%2F397700885554%2F96rGlfmibIGlgcZRskXaIFfN&trigger_id=398738663015.47445629121.803a0bc887a14d10d2c447fce8b6703c")
	want := "v0=a2114d57b48eac39b9ad189dd8316235a7b4a8d21a10bd27519666489c69b503"

	if got := Sign(secret, "1531420618", body); got != want {
		t.Errorf("Sign = %s, want %s", got, want)
	}
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	const secret = "shh"
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`{"type":"url_verification","challenge":"abc"}`)
	ts := strconv.FormatInt(now.Unix(), 10)
	good := Sign(secret, ts, body)
	minTS := strconv.FormatInt(math.MinInt64, 10)
	maxTS := strconv.FormatInt(math.MaxInt64, 10)

	tests := []struct {
		name      string
		signature string
		timestamp string
		body      []byte
		now       time.Time
		wantErr   error
	}{
		{"valid", good, ts, body, now, nil},
		{"clock slightly ahead", good, ts, body, now.Add(4 * time.Minute), nil},
		{"clock slightly behind", good, ts, body, now.Add(-4 * time.Minute), nil},
		{"stale", good, ts, body, now.Add(6 * time.Minute), ErrStaleTimestamp},
		{"from the future", good, ts, body, now.Add(-6 * time.Minute), ErrStaleTimestamp},
		{"missing timestamp", good, "", body, now, ErrStaleTimestamp},
		{"minimum int64 timestamp", Sign(secret, minTS, body), minTS, body, now, ErrStaleTimestamp},
		{"maximum int64 timestamp", Sign(secret, maxTS, body), maxTS, body, now, ErrStaleTimestamp},
		{"garbage timestamp", good, "yesterday", body, now, ErrStaleTimestamp},
		{"tampered body", good, ts, []byte(`{"type":"event_callback"}`), now, ErrInvalidSignature},
		{"wrong secret", Sign("other", ts, body), ts, body, now, ErrInvalidSignature},
		{"missing signature", "", ts, body, now, ErrInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := VerifySignature(secret, tt.signature, tt.timestamp, tt.body, tt.now, 5*time.Minute)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
