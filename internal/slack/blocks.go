// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package slack

import "github.com/tomtom215/slackiveroo/internal/tracker"

// Block is a Block Kit section block.
type Block struct {
	Type      string     `json:"type"`
	Text      *TextObj   `json:"text,omitempty"`
	Accessory *Accessory `json:"accessory,omitempty"`
}

// TextObj is a Block Kit text object.
type TextObj struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Accessory is an image accessory.
type Accessory struct {
	Type     string `json:"type"`
	ImageURL string `json:"image_url"`
	AltText  string `json:"alt_text"`
}

// BuildBlocks renders n as a single mrkdwn section with the restaurant
// image on the side.
func BuildBlocks(n tracker.Notification) []Block {
	b := Block{
		Type: "section",
		Text: &TextObj{Type: "mrkdwn", Text: n.Text},
	}
	if n.ImageURL != "" {
		b.Accessory = &Accessory{Type: "image", ImageURL: n.ImageURL, AltText: n.AltText}
	}
	return []Block{b}
}
