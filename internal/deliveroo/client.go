// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

// Package deliveroo resolves roo.it sharing links and polls the Deliveroo
// order status API.
package deliveroo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/slackiveroo/internal/breaker"
	"github.com/tomtom215/slackiveroo/internal/config"
	"github.com/tomtom215/slackiveroo/internal/logging"
	"github.com/tomtom215/slackiveroo/internal/tracker"
)

// maxBodySize bounds every response body we read.
const maxBodySize = 1 << 20

// ErrUnexpectedStatus is returned for non-200 answers.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// errClient marks 4xx answers, which do not count against the breaker.
var errClient = errors.New("client error")

var orderPathRe = regexp.MustCompile(`^.*/orders/(\d+)/status$`)

// Client talks to Deliveroo. It implements tracker.Resolver and
// tracker.StatusSource.
type Client struct {
	http      *http.Client
	apiRoot   string
	userAgent string
	breaker   *breaker.Breaker
	log       zerolog.Logger
}

// NewClient returns a Client configured from cfg.
func NewClient(cfg config.DeliverooConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		apiRoot:   strings.TrimRight(cfg.APIRoot, "/"),
		userAgent: cfg.UserAgent,
		breaker: breaker.New("deliveroo-api", breaker.Settings{
			IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, errClient) },
		}),
		log: logging.WithComponent("deliveroo"),
	}
}

// Resolve follows the sharing link redirects to the order page and builds
// the polling endpoint from its order id and sharing token.
func (c *Client) Resolve(ctx context.Context, sharingURL string) (string, error) {
	u, err := url.Parse(sharingURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid sharing URL %q", sharingURL)
	}

	final, err := breaker.Execute(c.breaker, func() (*url.URL, error) {
		resp, err := c.get(ctx, u.String(), "text/html")
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

		if resp.StatusCode != http.StatusOK {
			return nil, statusError(resp.StatusCode)
		}
		return resp.Request.URL, nil
	})
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", sharingURL, err)
	}

	c.log.Info().Str("sharing_url", sharingURL).Str("frontend_url", final.String()).Msg("Resolved sharing link")
	return c.endpointFor(final)
}

func (c *Client) endpointFor(frontend *url.URL) (string, error) {
	m := orderPathRe.FindStringSubmatch(frontend.Path)
	if m == nil {
		return "", fmt.Errorf("no order id in %s", frontend.Path)
	}
	token := frontend.Query().Get("sharing_token")
	if token == "" {
		return "", fmt.Errorf("no sharing_token in %s", frontend.String())
	}
	q := url.Values{"sharing_token": {token}}
	return fmt.Sprintf("%s/consumer_order_statuses/%s?%s", c.apiRoot, m[1], q.Encode()), nil
}

// FetchStatus reads the current order status from endpoint.
func (c *Client) FetchStatus(ctx context.Context, endpoint string) (tracker.OrderStatus, error) {
	body, err := breaker.Execute(c.breaker, func() ([]byte, error) {
		return c.fetch(ctx, endpoint)
	})
	if err != nil {
		return tracker.OrderStatus{}, fmt.Errorf("%w: %w", tracker.ErrFetch, err)
	}
	status, err := DecodeStatus(body)
	if err != nil {
		return tracker.OrderStatus{}, fmt.Errorf("%w: %w", tracker.ErrFetch, err)
	}
	return status, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	resp, err := c.get(ctx, endpoint, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read order status: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode)
	}
	return body, nil
}

func statusError(code int) error {
	err := fmt.Errorf("%w %d", ErrUnexpectedStatus, code)
	if code >= 400 && code < 500 {
		err = fmt.Errorf("%w: %w", errClient, err)
	}
	return err
}

func (c *Client) get(ctx context.Context, target, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}
	return resp, nil
}
