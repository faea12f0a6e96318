// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

// Package tracker is the order-tracking engine.
//
// A Dispatcher receives order mentions ("this sharing link was posted in
// this channel") and hands them to the Registry, which keeps at most one
// Tracker per order. Each Tracker runs as a suture service: it resolves
// the sharing link once, polls the order status, and posts every change of
// the status message to all channels that mentioned the order. Channels
// that join an order already in progress receive the current status
// straight away. A Tracker removes itself from the Registry when the order
// is COMPLETED or FAILED.
//
// The engine talks to the outside world only through the Resolver,
// StatusSource, Notifier and EventSink interfaces.
package tracker

// OrderKey identifies one order across all of its mentions.
type OrderKey string

// StatusCode is the upstream ui_status value.
type StatusCode string

// Well-known status codes. Upstream may send other intermediate codes,
// which are treated like StatusInProgress.
const (
	StatusInProgress StatusCode = "IN_PROGRESS"
	StatusCompleted  StatusCode = "COMPLETED"
	StatusFailed     StatusCode = "FAILED"
)

// Terminal reports whether polling must stop after this code.
func (c StatusCode) Terminal() bool {
	return c == StatusCompleted || c == StatusFailed
}

// OrderDetails is the restaurant block attached to a status.
type OrderDetails struct {
	RestaurantName string
	// ImageURL is a template containing {w} and {h} placeholders.
	ImageURL string
	ShortURL string
}

// OrderStatus is one observation of an order.
type OrderStatus struct {
	Code    StatusCode
	Message string
	ETA     string
	// HasETA is false when upstream sent no eta_message at all, which is
	// how Deliveroo says the food has arrived. An empty ETA may still be set.
	HasETA bool
	Order  *OrderDetails
}

// Terminal reports whether s ends tracking.
func (s OrderStatus) Terminal() bool {
	return s.Code.Terminal()
}
