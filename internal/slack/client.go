// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

// Package slack is a small Slack Web API and Events API client: posting
// order updates, joining channels, the OAuth install exchange and request
// signature checks.
package slack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/slackiveroo/internal/breaker"
	"github.com/tomtom215/slackiveroo/internal/config"
	"github.com/tomtom215/slackiveroo/internal/logging"
	"github.com/tomtom215/slackiveroo/internal/metrics"
	"github.com/tomtom215/slackiveroo/internal/tokenstore"
	"github.com/tomtom215/slackiveroo/internal/tracker"
)

const maxResponseSize = 1 << 20

// ErrNoToken means neither an installation token nor an app token is
// available for a team.
var ErrNoToken = errors.New("no Slack token for team")

// errHTTPClient marks 4xx answers so the breaker ignores them.
var errHTTPClient = errors.New("slack HTTP client error")

// APIError is an "ok": false answer from the Web API.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Code)
}

// TokenSource looks up the bot token installed in a team.
type TokenSource interface {
	Token(ctx context.Context, teamID string) (string, error)
}

type apiResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

type postMessageRequest struct {
	Channel string  `json:"channel"`
	Text    string  `json:"text"`
	Blocks  []Block `json:"blocks,omitempty"`
}

type joinRequest struct {
	Channel string `json:"channel"`
}

// Client calls the Slack Web API. It implements tracker.Notifier.
type Client struct {
	http         *http.Client
	apiURL       string
	userAgent    string
	appToken     string
	clientID     string
	clientSecret string
	tokens       TokenSource
	limiter      *channelLimiter
	breaker      *breaker.Breaker
	log          zerolog.Logger
}

// NewClient returns a Client. tokens may be nil, in which case every post
// uses the app token.
func NewClient(cfg config.SlackConfig, tokens TokenSource) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	isSuccessful := func(err error) bool {
		return err == nil || errors.Is(err, errHTTPClient)
	}
	return &Client{
		http:         &http.Client{Timeout: timeout},
		apiURL:       strings.TrimRight(cfg.APIURL, "/"),
		userAgent:    cfg.UserAgent,
		appToken:     cfg.AppToken,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokens:       tokens,
		limiter:      newChannelLimiter(cfg.PostRate, cfg.PostBurst),
		breaker:      breaker.New("slack-api", breaker.Settings{IsSuccessful: isSuccessful}),
		log:          logging.WithComponent("slack"),
	}
}

// Deliver posts n to dest using the team's token.
func (c *Client) Deliver(ctx context.Context, dest tracker.Destination, n tracker.Notification) error {
	token, err := c.tokenFor(ctx, dest.TeamID)
	if err != nil {
		return fmt.Errorf("%w: %w", tracker.ErrDelivery, err)
	}
	if err := c.limiter.Wait(ctx, dest.String()); err != nil {
		return fmt.Errorf("%w: %w", tracker.ErrDelivery, err)
	}
	if err := c.PostMessage(ctx, token, dest.ChannelID, n.Summary, BuildBlocks(n)); err != nil {
		return fmt.Errorf("%w: %w", tracker.ErrDelivery, err)
	}
	return nil
}

func (c *Client) tokenFor(ctx context.Context, teamID string) (string, error) {
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx, teamID)
		switch {
		case err == nil && token != "":
			return token, nil
		case err != nil && !errors.Is(err, tokenstore.ErrTokenNotFound):
			return "", err
		}
	}
	if c.appToken != "" {
		return c.appToken, nil
	}
	return "", fmt.Errorf("%w %s", ErrNoToken, teamID)
}

// PostMessage calls chat.postMessage. If the bot is not in the channel it
// joins and tries once more.
func (c *Client) PostMessage(ctx context.Context, token, channel, text string, blocks []Block) error {
	req := postMessageRequest{Channel: channel, Text: text, Blocks: blocks}
	err := c.callJSON(ctx, "chat.postMessage", token, req)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == "not_in_channel" {
		c.log.Info().Str("channel", channel).Msg("Not in channel, joining")
		if err := c.JoinChannel(ctx, token, channel); err != nil {
			return err
		}
		return c.callJSON(ctx, "chat.postMessage", token, req)
	}
	return err
}

// JoinChannel calls conversations.join.
func (c *Client) JoinChannel(ctx context.Context, token, channel string) error {
	if err := c.callJSON(ctx, "conversations.join", token, joinRequest{Channel: channel}); err != nil {
		return err
	}
	metrics.SlackChannelJoins.Inc()
	return nil
}

func (c *Client) callJSON(ctx context.Context, method, token string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}
	_, err = c.call(ctx, method, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/"+method, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
	return err
}

func (c *Client) callForm(ctx context.Context, method string, form url.Values) ([]byte, error) {
	return c.call(ctx, method, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/"+method, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

// call sends one request through the breaker and checks the ok field.
// It returns the raw body of successful answers.
func (c *Client) call(ctx context.Context, method string, build func() (*http.Request, error)) ([]byte, error) {
	raw, err := breaker.Execute(c.breaker, func() ([]byte, error) {
		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("build %s request: %w", method, err)
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		return c.do(req)
	})
	if err == nil {
		var resp apiResponse
		if decodeErr := json.Unmarshal(raw, &resp); decodeErr != nil {
			err = fmt.Errorf("decode %s response: %w", method, decodeErr)
		} else if !resp.OK {
			err = &APIError{Method: method, Code: resp.Error}
		} else if resp.Warning != "" {
			logging.Ctx(ctx).Debug().Str("method", method).Str("warning", resp.Warning).Msg("Slack API warning")
		}
	}
	metrics.RecordSlackCall(method, err)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("POST %s: HTTP %d", req.URL.Path, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			err = fmt.Errorf("%w: %w", errHTTPClient, err)
		}
		return nil, err
	}
	return body, nil
}
