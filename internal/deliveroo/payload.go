// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package deliveroo

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/slackiveroo/internal/tracker"
)

// statusDocument is the JSON:API document served by
// consumer_order_statuses. Only the fields we display are decoded.
type statusDocument struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			UIStatus   string  `json:"ui_status"`
			Message    string  `json:"message"`
			ETAMessage *string `json:"eta_message"`
		} `json:"attributes"`
	} `json:"data"`
	Included []includedResource `json:"included"`
}

type includedResource struct {
	Type       string `json:"type"`
	Attributes struct {
		RestaurantName  string `json:"restaurant_name"`
		ImageURL        string `json:"image_url"`
		SharingShortURL string `json:"sharing_short_url"`
	} `json:"attributes"`
}

// DecodeStatus parses a consumer_order_statuses document. A missing order
// resource is not an error here; the formatter rejects it.
func DecodeStatus(body []byte) (tracker.OrderStatus, error) {
	var doc statusDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return tracker.OrderStatus{}, fmt.Errorf("decode order status: %w", err)
	}

	attrs := doc.Data.Attributes
	if attrs.UIStatus == "" {
		return tracker.OrderStatus{}, fmt.Errorf("%w: missing ui_status", tracker.ErrMalformedStatus)
	}

	status := tracker.OrderStatus{
		Code:    tracker.StatusCode(attrs.UIStatus),
		Message: attrs.Message,
	}
	if attrs.ETAMessage != nil {
		status.ETA = *attrs.ETAMessage
		status.HasETA = true
	}

	for i := range doc.Included {
		inc := &doc.Included[i]
		if inc.Type != "order" {
			continue
		}
		status.Order = &tracker.OrderDetails{
			RestaurantName: inc.Attributes.RestaurantName,
			ImageURL:       inc.Attributes.ImageURL,
			ShortURL:       inc.Attributes.SharingShortURL,
		}
		break
	}
	return status, nil
}
