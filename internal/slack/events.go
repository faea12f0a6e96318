// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package slack

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Events API envelope and event types we handle.
const (
	TypeURLVerification = "url_verification"
	TypeEventCallback   = "event_callback"
	EventLinkShared     = "link_shared"
)

// Envelope is the outer Events API payload.
type Envelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge,omitempty"`
	TeamID    string `json:"team_id,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	Event     *Event `json:"event,omitempty"`
}

// Event is the inner event of an event_callback.
type Event struct {
	Type      string `json:"type"`
	Channel   string `json:"channel,omitempty"`
	User      string `json:"user,omitempty"`
	MessageTS string `json:"message_ts,omitempty"`
	Links     []Link `json:"links,omitempty"`
}

// Link is one unfurlable link of a link_shared event.
type Link struct {
	Domain string `json:"domain"`
	URL    string `json:"url"`
}

// ParseEnvelope decodes an Events API request body.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("decode event envelope: missing type")
	}
	return &env, nil
}

// SharedLinks returns the URLs of a link_shared event whose domain is
// domain. Other envelopes and events yield nothing.
func (e *Envelope) SharedLinks(domain string) []string {
	if e.Event == nil || e.Event.Type != EventLinkShared {
		return nil
	}
	var urls []string
	for _, l := range e.Event.Links {
		if strings.EqualFold(l.Domain, domain) && l.URL != "" {
			urls = append(urls, l.URL)
		}
	}
	return urls
}
