// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/slackiveroo/config.yaml",
	"/etc/slackiveroo/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Slack: SlackConfig{
			APIURL:          "https://slack.com/api",
			SignatureMaxAge: 5 * time.Minute,
			RequestTimeout:  10 * time.Second,
			PostRate:        1,
			PostBurst:       1,
			UserAgent:       "titouanc/slackiveroo",
		},
		Deliveroo: DeliverooConfig{
			APIRoot:         "https://order-status.deliveroo.net/api/v2-4",
			ShortLinkDomain: "roo.it",
			RequestTimeout:  10 * time.Second,
			UserAgent:       "titouanc/slackiveroo",
			ImageWidth:      192,
			ImageHeight:     108,
		},
		Tracker: TrackerConfig{
			PollInterval: 15 * time.Second,
		},
		Store: StoreConfig{
			Path: "/data/tokens",
		},
		Events: EventsConfig{
			Enabled:     true,
			TopicPrefix: "slackiveroo",
		},
		Keepalive: KeepaliveConfig{
			Interval: 5 * time.Minute,
		},
		Mock: MockConfig{
			ResponsesDir: "examples",
			Delay:        125 * time.Millisecond,
		},
		Security: SecurityConfig{
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file and
// the environment, then validates it.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit config file path ("" skips the file).
func LoadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unlisted variables are ignored.
var envMappings = map[string]string{
	"http_host":             "server.host",
	"http_port":             "server.port",
	"port":                  "server.port",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	"slack_sign_secret":       "slack.signing_secret",
	"slack_signing_secret":    "slack.signing_secret",
	"slack_client_id":         "slack.client_id",
	"slack_client_secret":     "slack.client_secret",
	"slack_app_token":         "slack.app_token",
	"slack_api_url":           "slack.api_url",
	"slack_signature_max_age": "slack.signature_max_age",
	"slack_request_timeout":   "slack.request_timeout",
	"slack_post_rate":         "slack.post_rate",
	"slack_post_burst":        "slack.post_burst",

	"deliveroo_api_root":        "deliveroo.api_root",
	"deliveroo_short_domain":    "deliveroo.short_link_domain",
	"deliveroo_request_timeout": "deliveroo.request_timeout",

	"poll_interval": "tracker.poll_interval",

	"token_store_path":      "store.path",
	"token_store_in_memory": "store.in_memory",

	"events_enabled":      "events.enabled",
	"nats_url":            "events.nats_url",
	"events_topic_prefix": "events.topic_prefix",

	"self_query_url":     "keepalive.url",
	"keepalive_interval": "keepalive.interval",

	"use_mock":           "mock.enabled",
	"mock_responses_dir": "mock.responses_dir",
	"mock_delay":         "mock.delay",

	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps SLACK_SIGN_SECRET to slack.signing_secret and so on.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
