// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package tracker

import (
	"fmt"
	"strconv"
	"strings"
)

// Default preview size for restaurant images.
const (
	DefaultImageWidth  = 192
	DefaultImageHeight = 108
)

// PreviewAltText is the alt text of the restaurant preview image.
const PreviewAltText = "Restaurant preview"

// Notification is a rendered status update.
type Notification struct {
	// Summary is the first line of Text, used for desktop notifications.
	Summary string
	// Text is Slack mrkdwn.
	Text     string
	ImageURL string
	AltText  string
}

// Formatter renders order statuses. The zero value uses the default
// preview size.
type Formatter struct {
	ImageWidth  int
	ImageHeight int
}

// Format renders status with the default Formatter.
func Format(status OrderStatus) (Notification, error) {
	return Formatter{}.Format(status)
}

// Format renders status. It returns ErrMalformedStatus when the order
// block or the restaurant name is missing.
func (f Formatter) Format(status OrderStatus) (Notification, error) {
	if status.Order == nil {
		return Notification{}, fmt.Errorf("%w: missing order block", ErrMalformedStatus)
	}
	order := status.Order
	if strings.TrimSpace(order.RestaurantName) == "" {
		return Notification{}, fmt.Errorf("%w: missing restaurant name", ErrMalformedStatus)
	}

	var text string
	switch {
	case status.Code == StatusFailed:
		text = fmt.Sprintf("<!here> :rotating_light: The order from *%s* has *FAILED* _(%s)_\n%s",
			order.RestaurantName, status.Message, order.ShortURL)
	case !status.HasETA:
		text = fmt.Sprintf("*%s* is here, <!here> hungry people :bowl_with_spoon: !", order.RestaurantName)
	default:
		text = fmt.Sprintf("*%s*: %s\n*ETA*: %s\n%s",
			order.RestaurantName, status.Message, status.ETA, order.ShortURL)
	}

	summary, _, _ := strings.Cut(text, "\n")
	return Notification{
		Summary:  summary,
		Text:     text,
		ImageURL: f.imageURL(order.ImageURL),
		AltText:  PreviewAltText,
	}, nil
}

func (f Formatter) imageURL(template string) string {
	w, h := f.ImageWidth, f.ImageHeight
	if w <= 0 {
		w = DefaultImageWidth
	}
	if h <= 0 {
		h = DefaultImageHeight
	}
	return strings.NewReplacer("{w}", strconv.Itoa(w), "{h}", strconv.Itoa(h)).Replace(template)
}
