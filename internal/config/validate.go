// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package config

import (
	"errors"
	"fmt"

	"github.com/tomtom215/slackiveroo/internal/logging"
	"github.com/tomtom215/slackiveroo/internal/validation"
)

// Validate runs the struct tag rules and the cross-field checks.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	checks := []func() error{
		c.validateSlackOAuth,
		c.validateStore,
		c.validateMock,
		c.validateLogging,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateSlackOAuth() error {
	if (c.Slack.ClientID == "") != (c.Slack.ClientSecret == "") {
		return errors.New("SLACK_CLIENT_ID and SLACK_CLIENT_SECRET must be set together")
	}
	return nil
}

func (c *Config) validateStore() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return errors.New("TOKEN_STORE_PATH is required unless TOKEN_STORE_IN_MEMORY=true")
	}
	return nil
}

func (c *Config) validateMock() error {
	if c.Mock.Enabled && c.Mock.ResponsesDir == "" {
		return errors.New("MOCK_RESPONSES_DIR is required when USE_MOCK=true")
	}
	if c.Mock.Delay < 0 {
		return fmt.Errorf("MOCK_DELAY must not be negative, got %s", c.Mock.Delay)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	return nil
}

// OAuthEnabled reports whether the "Add to Slack" flow is configured.
func (c *Config) OAuthEnabled() bool {
	return c.Slack.ClientID != "" && c.Slack.ClientSecret != ""
}
