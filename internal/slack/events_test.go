// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package slack

import (
	"reflect"
	"testing"

	"github.com/tomtom215/slackiveroo/internal/tracker"
)

func TestParseEnvelope(t *testing.T) {
	t.Parallel()

	env, err := ParseEnvelope([]byte(`{"type":"url_verification","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P"}`))
	if err != nil {
		t.Fatal(err)
	}
	if env.Type != TypeURLVerification || env.Challenge == "" {
		t.Errorf("env = %+v", env)
	}

	for _, body := range []string{``, `{`, `{}`} {
		if _, err := ParseEnvelope([]byte(body)); err == nil {
			t.Errorf("ParseEnvelope(%q) succeeded", body)
		}
	}
}

func TestSharedLinks(t *testing.T) {
	t.Parallel()

	body := `{
		"type": "event_callback",
		"team_id": "T1",
		"event": {
			"type": "link_shared",
			"channel": "C1",
			"links": [
				{"domain": "roo.it", "url": "https://roo.it/s/a"},
				{"domain": "example.com", "url": "https://example.com/x"},
				{"domain": "ROO.IT", "url": "https://roo.it/s/b"}
			]
		}
	}`
	env, err := ParseEnvelope([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	got := env.SharedLinks("roo.it")
	want := []string{"https://roo.it/s/a", "https://roo.it/s/b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SharedLinks = %v, want %v", got, want)
	}

	env.Event.Type = "message"
	if links := env.SharedLinks("roo.it"); links != nil {
		t.Errorf("non link_shared event returned %v", links)
	}
}

func TestBuildBlocks(t *testing.T) {
	t.Parallel()

	blocks := BuildBlocks(tracker.Notification{
		Summary:  "*Pizza*: cooking",
		Text:     "*Pizza*: cooking\n*ETA*: 12:00\nhttps://roo.it/s/a",
		ImageURL: "https://img/192x108/p.jpg",
		AltText:  tracker.PreviewAltText,
	})
	if len(blocks) != 1 {
		t.Fatalf("len = %d", len(blocks))
	}
	b := blocks[0]
	if b.Type != "section" || b.Text.Type != "mrkdwn" {
		t.Errorf("block = %+v", b)
	}
	if b.Accessory == nil || b.Accessory.ImageURL != "https://img/192x108/p.jpg" || b.Accessory.AltText != "Restaurant preview" {
		t.Errorf("accessory = %+v", b.Accessory)
	}

	if blocks := BuildBlocks(tracker.Notification{Text: "x"}); blocks[0].Accessory != nil {
		t.Error("no image should mean no accessory")
	}
}
