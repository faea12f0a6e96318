// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package tracker

import (
	"context"
	"errors"

	"github.com/thejerf/suture/v4"
)

var (
	// ErrResolution means a sharing reference could not be turned into a
	// polling endpoint. The tracker stops without polling.
	ErrResolution = errors.New("cannot resolve sharing reference")

	// ErrFetch means one status poll failed. The tracker retries on the
	// next poll.
	ErrFetch = errors.New("cannot fetch order status")

	// ErrDelivery means one destination did not receive a message.
	ErrDelivery = errors.New("cannot deliver notification")

	// ErrMalformedStatus means upstream sent a status that cannot be shown.
	ErrMalformedStatus = errors.New("malformed order status")

	// ErrEmptyReference is returned for a blank sharing reference.
	ErrEmptyReference = errors.New("empty sharing reference")

	// ErrInvalidDestination is returned for a destination missing an id.
	ErrInvalidDestination = errors.New("invalid destination")
)

// Resolver turns a sharing reference into a polling endpoint.
type Resolver interface {
	Resolve(ctx context.Context, sharingRef string) (endpoint string, err error)
}

// StatusSource fetches the current status from a polling endpoint.
type StatusSource interface {
	FetchStatus(ctx context.Context, endpoint string) (OrderStatus, error)
}

// Notifier delivers one notification to one destination.
type Notifier interface {
	Deliver(ctx context.Context, dest Destination, n Notification) error
}

// EventSink is told about status changes and tracking ends. It must not
// block for long and has no way to fail the tracker.
type EventSink interface {
	StatusChanged(ctx context.Context, key OrderKey, status OrderStatus, recipients int)
	TrackingEnded(ctx context.Context, key OrderKey, reason string)
}

// Launcher runs trackers. *suture.Supervisor satisfies it.
type Launcher interface {
	Add(service suture.Service) suture.ServiceToken
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, sharingRef string) (string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, sharingRef string) (string, error) {
	return f(ctx, sharingRef)
}

// StatusSourceFunc adapts a function to StatusSource.
type StatusSourceFunc func(ctx context.Context, endpoint string) (OrderStatus, error)

// FetchStatus calls f.
func (f StatusSourceFunc) FetchStatus(ctx context.Context, endpoint string) (OrderStatus, error) {
	return f(ctx, endpoint)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, dest Destination, n Notification) error

// Deliver calls f.
func (f NotifierFunc) Deliver(ctx context.Context, dest Destination, n Notification) error {
	return f(ctx, dest, n)
}

type nopEvents struct{}

func (nopEvents) StatusChanged(context.Context, OrderKey, OrderStatus, int) {}
func (nopEvents) TrackingEnded(context.Context, OrderKey, string)           {}
