// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package slack

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// staleAfter is how long an unused channel limiter is kept.
const staleAfter = time.Hour

// channelLimiter paces chat.postMessage per channel. Slack allows roughly
// one message per second per channel.
type channelLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	rate      rate.Limit
	burst     int
	lastPrune time.Time
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newChannelLimiter(perSecond float64, burst int) *channelLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &channelLimiter{
		limiters:  make(map[string]*limiterEntry),
		rate:      rate.Limit(perSecond),
		burst:     burst,
		lastPrune: time.Now(),
	}
}

// Wait blocks until a message may be posted to key or ctx ends.
func (cl *channelLimiter) Wait(ctx context.Context, key string) error {
	now := time.Now()

	cl.mu.Lock()
	entry, ok := cl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(cl.rate, cl.burst)}
		cl.limiters[key] = entry
	}
	entry.lastAccess = now
	if now.Sub(cl.lastPrune) > staleAfter {
		cl.pruneLocked(now)
	}
	limiter := entry.limiter
	cl.mu.Unlock()

	return limiter.Wait(ctx)
}

// pruneLocked removes limiters that have not been used for staleAfter.
func (cl *channelLimiter) pruneLocked(now time.Time) {
	threshold := now.Add(-staleAfter)
	for key, entry := range cl.limiters {
		if entry.lastAccess.Before(threshold) {
			delete(cl.limiters, key)
		}
	}
	cl.lastPrune = now
}

func (cl *channelLimiter) size() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.limiters)
}
