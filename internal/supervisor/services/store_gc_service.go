// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package services

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/slackiveroo/internal/logging"
)

// GarbageCollector is satisfied by *tokenstore.Store.
type GarbageCollector interface {
	RunGC() error
}

// TokenStoreGCService runs BadgerDB value log GC on the token store every
// interval. GC errors are logged; they never stop the service.
type TokenStoreGCService struct {
	store    GarbageCollector
	interval time.Duration
}

// NewTokenStoreGCService returns the service. interval defaults to 10m.
func NewTokenStoreGCService(store GarbageCollector, interval time.Duration) *TokenStoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &TokenStoreGCService{store: store, interval: interval}
}

// Serve implements suture.Service.
func (s *TokenStoreGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.store.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Token store GC failed")
				if errors.Is(err, context.Canceled) {
					return err
				}
			}
		}
	}
}

// String implements fmt.Stringer for suture logs.
func (s *TokenStoreGCService) String() string {
	return "tokenstore-gc"
}
