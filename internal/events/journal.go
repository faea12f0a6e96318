// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/slackiveroo/internal/logging"
)

// Journal consumes in-process events and writes one structured log line per
// order event. It is the GoChannel consumer when no NATS URL is set.
type Journal struct {
	pub *Publisher
	log zerolog.Logger
}

// NewJournal returns a Journal reading from pub.
func NewJournal(pub *Publisher) *Journal {
	return &Journal{pub: pub, log: logging.WithComponent("event-journal")}
}

// Serve implements suture.Service. Against a NATS publisher there is nothing
// to consume and it asks not to be restarted.
func (j *Journal) Serve(ctx context.Context) error {
	changed, err := j.pub.Subscribe(ctx, TopicStatusChanged)
	if errors.Is(err, ErrNoSubscriber) {
		return suture.ErrDoNotRestart
	}
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicStatusChanged, err)
	}
	ended, err := j.pub.Subscribe(ctx, TopicTrackingEnded)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicTrackingEnded, err)
	}

	// GoChannel closes both channels on cancel or on Publisher.Close.
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-changed:
			if !ok {
				return ctx.Err()
			}
			j.statusChanged(msg)
		case msg, ok := <-ended:
			if !ok {
				return ctx.Err()
			}
			j.trackingEnded(msg)
		}
	}
}

func (j *Journal) statusChanged(msg *message.Message) {
	defer msg.Ack()
	var evt StatusChanged
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		j.log.Warn().Err(err).Str("message_id", msg.UUID).Msg("Undecodable status event")
		return
	}
	j.log.Info().
		Str("event_id", evt.EventID).
		Str("correlation_id", msg.Metadata.Get(metadataCorrelation)).
		Str("order", evt.OrderKey).
		Str("status", evt.Status).
		Str("restaurant", evt.Restaurant).
		Int("recipients", evt.Recipients).
		Msg("Order status announced")
}

func (j *Journal) trackingEnded(msg *message.Message) {
	defer msg.Ack()
	var evt TrackingEnded
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		j.log.Warn().Err(err).Str("message_id", msg.UUID).Msg("Undecodable tracking-ended event")
		return
	}
	j.log.Info().
		Str("event_id", evt.EventID).
		Str("correlation_id", msg.Metadata.Get(metadataCorrelation)).
		Str("order", evt.OrderKey).
		Str("reason", evt.Reason).
		Msg("Order tracking ended")
}

// String implements fmt.Stringer for suture logs.
func (j *Journal) String() string {
	return "event-journal"
}
