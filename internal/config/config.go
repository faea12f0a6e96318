// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

// Package config loads Slackiveroo configuration from built-in defaults, an
// optional YAML file and environment variables, in that order of precedence.
package config

import "time"

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Slack     SlackConfig     `koanf:"slack"`
	Deliveroo DeliverooConfig `koanf:"deliveroo"`
	Tracker   TrackerConfig   `koanf:"tracker"`
	Store     StoreConfig     `koanf:"store"`
	Events    EventsConfig    `koanf:"events"`
	Keepalive KeepaliveConfig `koanf:"keepalive"`
	Mock      MockConfig      `koanf:"mock"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// SlackConfig holds Slack app credentials and Web API client settings.
type SlackConfig struct {
	// SigningSecret authenticates inbound Events API requests.
	SigningSecret string `koanf:"signing_secret" validate:"required"`

	// ClientID and ClientSecret are used by the "Add to Slack" OAuth flow.
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`

	// AppToken is used for teams that have no OAuth token stored.
	AppToken string `koanf:"app_token"`

	APIURL          string        `koanf:"api_url" validate:"required,http_url"`
	SignatureMaxAge time.Duration `koanf:"signature_max_age" validate:"gt=0"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`

	// PostRate is the per-channel message rate in messages per second.
	PostRate  float64 `koanf:"post_rate" validate:"gt=0"`
	PostBurst int     `koanf:"post_burst" validate:"gte=1"`

	UserAgent string `koanf:"user_agent"`
}

// DeliverooConfig controls sharing-link resolution and status polling.
type DeliverooConfig struct {
	APIRoot         string        `koanf:"api_root" validate:"required,http_url"`
	ShortLinkDomain string        `koanf:"short_link_domain" validate:"required"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	UserAgent       string        `koanf:"user_agent"`
	ImageWidth      int           `koanf:"image_width" validate:"gte=1"`
	ImageHeight     int           `koanf:"image_height" validate:"gte=1"`
}

// TrackerConfig controls order trackers.
type TrackerConfig struct {
	PollInterval time.Duration `koanf:"poll_interval" validate:"gt=0"`
}

// StoreConfig configures the BadgerDB team token store.
type StoreConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// EventsConfig configures lifecycle event publishing.
type EventsConfig struct {
	Enabled bool `koanf:"enabled"`

	// NATSURL selects the NATS publisher; empty keeps events in-process.
	NATSURL     string `koanf:"nats_url" validate:"omitempty,url"`
	TopicPrefix string `koanf:"topic_prefix" validate:"required"`
}

// KeepaliveConfig configures the self-ping loop.
type KeepaliveConfig struct {
	URL      string        `koanf:"url" validate:"omitempty,http_url"`
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
}

// MockConfig replays canned Deliveroo responses instead of polling.
type MockConfig struct {
	Enabled      bool          `koanf:"enabled"`
	ResponsesDir string        `koanf:"responses_dir"`
	Delay        time.Duration `koanf:"delay"`
}

// SecurityConfig holds inbound rate limiting.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ListenAddr returns host:port for the HTTP server.
func (s ServerConfig) ListenAddr() string {
	return joinHostPort(s.Host, s.Port)
}
