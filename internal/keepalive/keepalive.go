// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

// Package keepalive pings the service's own public URL while orders are
// being tracked, so that hosts which idle sleeping web workers keep the
// process alive until every order is delivered.
package keepalive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/slackiveroo/internal/config"
	"github.com/tomtom215/slackiveroo/internal/logging"
	"github.com/tomtom215/slackiveroo/internal/metrics"
)

// ActiveCounter reports how many orders are tracked.
type ActiveCounter interface {
	Len() int
}

// Service is a suture service pinging URL every Interval.
type Service struct {
	url      string
	interval time.Duration
	trackers ActiveCounter
	client   *http.Client
	log      zerolog.Logger
}

// New returns a keepalive service.
func New(cfg config.KeepaliveConfig, trackers ActiveCounter) *Service {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Service{
		url:      cfg.URL,
		interval: interval,
		trackers: trackers,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      logging.WithComponent("keepalive"),
	}
}

// Serve implements suture.Service. Without a URL it logs a warning and
// asks not to be restarted.
func (s *Service) Serve(ctx context.Context) error {
	if s.url == "" {
		s.log.Warn().Msg("No self-query URL given, keepalive is disabled")
		return suture.ErrDoNotRestart
	}

	s.log.Info().Str("url", s.url).Dur("interval", s.interval).Msg("Keepalive started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	if s.trackers.Len() == 0 {
		metrics.KeepalivePings.WithLabelValues("skipped").Inc()
		return
	}
	if err := s.Ping(ctx); err != nil {
		metrics.KeepalivePings.WithLabelValues("error").Inc()
		s.log.Warn().Err(err).Msg("Keepalive ping failed")
		return
	}
	metrics.KeepalivePings.WithLabelValues("success").Inc()
	s.log.Debug().Int("trackers", s.trackers.Len()).Msg("Keepalive ping")
}

// Ping GETs the URL once and expects a 200.
func (s *Service) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("build keepalive request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("keepalive GET: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("keepalive GET: HTTP %d", resp.StatusCode)
	}
	return nil
}

// String implements fmt.Stringer for suture logs.
func (s *Service) String() string {
	return "keepalive"
}
