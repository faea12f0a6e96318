// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package deliveroo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/slackiveroo/internal/logging"
	"github.com/tomtom215/slackiveroo/internal/tracker"
)

// MockEndpointPrefix marks endpoints handed out by ReplaySource.Resolve.
const MockEndpointPrefix = "mock:"

// ReplaySource serves canned status documents in file name order, one per
// poll. Each endpoint has its own cursor. Once the documents run out the
// last one is repeated.
type ReplaySource struct {
	delay     time.Duration
	responses [][]byte
	log       zerolog.Logger

	mu      sync.Mutex
	cursors map[string]int
}

// NewReplaySource loads every *.json file in dir.
func NewReplaySource(dir string, delay time.Duration) (*ReplaySource, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list mock responses: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no mock responses in %s", dir)
	}
	sort.Strings(paths)

	responses := make([][]byte, 0, len(paths))
	for _, p := range paths {
		body, err := os.ReadFile(p) //nolint:gosec // operator-supplied directory
		if err != nil {
			return nil, fmt.Errorf("read mock response: %w", err)
		}
		if _, err := DecodeStatus(body); err != nil {
			return nil, fmt.Errorf("mock response %s: %w", filepath.Base(p), err)
		}
		responses = append(responses, body)
	}

	log := logging.WithComponent("deliveroo-mock")
	log.Warn().Str("dir", dir).Int("responses", len(responses)).Msg("Mock mode enabled, Deliveroo will not be contacted")

	return &ReplaySource{
		delay:     delay,
		responses: responses,
		log:       log,
		cursors:   make(map[string]int),
	}, nil
}

// Resolve skips the network and gives every reference its own replay.
func (r *ReplaySource) Resolve(_ context.Context, sharingRef string) (string, error) {
	r.log.Info().Str("sharing_url", sharingRef).Msg("MOCK: bypassing sharing link resolution")
	return MockEndpointPrefix + sharingRef, nil
}

// FetchStatus returns the next canned status for endpoint.
func (r *ReplaySource) FetchStatus(ctx context.Context, endpoint string) (tracker.OrderStatus, error) {
	if r.delay > 0 {
		t := time.NewTimer(r.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return tracker.OrderStatus{}, fmt.Errorf("%w: %w", tracker.ErrFetch, ctx.Err())
		case <-t.C:
		}
	}

	r.mu.Lock()
	i := r.cursors[endpoint]
	if i < len(r.responses)-1 {
		r.cursors[endpoint] = i + 1
	}
	body := r.responses[i]
	r.mu.Unlock()

	status, err := DecodeStatus(body)
	if err != nil {
		return tracker.OrderStatus{}, fmt.Errorf("%w: %w", tracker.ErrFetch, err)
	}
	return status, nil
}
