// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package slack

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/slackiveroo/internal/logging"
	"github.com/tomtom215/slackiveroo/internal/metrics"
	"github.com/tomtom215/slackiveroo/internal/tokenstore"
)

// ErrOAuthDisabled is returned when no client id/secret is configured.
var ErrOAuthDisabled = errors.New("slack OAuth is not configured")

type oauthAccessResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	BotUserID   string `json:"bot_user_id"`
	Team        struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"team"`
}

// ExchangeCode trades an "Add to Slack" grant code for a bot token with
// oauth.v2.access.
func (c *Client) ExchangeCode(ctx context.Context, code string) (tokenstore.Installation, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return tokenstore.Installation{}, ErrOAuthDisabled
	}
	if code == "" {
		return tokenstore.Installation{}, errors.New("empty OAuth grant code")
	}

	raw, err := c.callForm(ctx, "oauth.v2.access", url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"code":          {code},
	})
	if err != nil {
		return tokenstore.Installation{}, fmt.Errorf("invalid OAuth2 access: %w", err)
	}

	var resp oauthAccessResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return tokenstore.Installation{}, fmt.Errorf("decode oauth.v2.access: %w", err)
	}
	if resp.Team.ID == "" || resp.AccessToken == "" {
		return tokenstore.Installation{}, errors.New("oauth.v2.access answered without team or token")
	}

	return tokenstore.Installation{
		TeamID:      resp.Team.ID,
		TeamName:    resp.Team.Name,
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		Scope:       resp.Scope,
		BotUserID:   resp.BotUserID,
		InstalledAt: time.Now().UTC(),
	}, nil
}

// InstallationSink stores installations.
type InstallationSink interface {
	Put(ctx context.Context, inst tokenstore.Installation) error
}

// Installer completes the OAuth flow: exchange the code, then store the
// token for the team.
type Installer struct {
	client *Client
	store  InstallationSink
}

// NewInstaller returns an Installer.
func NewInstaller(client *Client, store InstallationSink) *Installer {
	return &Installer{client: client, store: store}
}

// Enabled reports whether OAuth credentials are configured.
func (i *Installer) Enabled() bool {
	return i.client.clientID != "" && i.client.clientSecret != ""
}

// Install exchanges code and stores the resulting token.
func (i *Installer) Install(ctx context.Context, code string) (inst tokenstore.Installation, err error) {
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
		}
		metrics.OAuthInstalls.WithLabelValues(result).Inc()
	}()

	inst, err = i.client.ExchangeCode(ctx, code)
	if err != nil {
		return tokenstore.Installation{}, err
	}
	if err := i.store.Put(ctx, inst); err != nil {
		return tokenstore.Installation{}, fmt.Errorf("store installation: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("team_id", inst.TeamID).
		Str("team_name", inst.TeamName).
		Str("scope", inst.Scope).
		Str("bot_user_id", inst.BotUserID).
		Msg("Slack workspace installed")
	return inst, nil
}
