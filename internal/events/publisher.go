// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

// Package events publishes order lifecycle events through Watermill.
//
// By default events stay in process on a GoChannel pub/sub, where other
// components can subscribe. When a NATS URL is configured they are
// published to core NATS subjects instead.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/slackiveroo/internal/config"
	"github.com/tomtom215/slackiveroo/internal/logging"
	"github.com/tomtom215/slackiveroo/internal/metrics"
	"github.com/tomtom215/slackiveroo/internal/tracker"
)

// Topic suffixes.
const (
	TopicStatusChanged  = "order.status_changed"
	TopicTrackingEnded  = "order.tracking_ended"
	metadataCorrelation = "correlation_id"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("publisher is closed")

// ErrNoSubscriber is returned by Subscribe when events go to NATS.
var ErrNoSubscriber = errors.New("events are not published in process")

// StatusChanged is the payload of order.status_changed.
type StatusChanged struct {
	EventID    string    `json:"event_id"`
	OrderKey   string    `json:"order_key"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	ETA        string    `json:"eta,omitempty"`
	Restaurant string    `json:"restaurant,omitempty"`
	Recipients int       `json:"recipients"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TrackingEnded is the payload of order.tracking_ended.
type TrackingEnded struct {
	EventID    string    `json:"event_id"`
	OrderKey   string    `json:"order_key"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher implements tracker.EventSink on top of a Watermill publisher.
type Publisher struct {
	publisher  message.Publisher
	subscriber message.Subscriber // nil for NATS
	prefix     string
	logger     watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewPublisher builds the publisher selected by cfg.
func NewPublisher(cfg config.EventsConfig) (*Publisher, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger().With("component", "events"))

	if cfg.NATSURL == "" {
		pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		return &Publisher{publisher: pubSub, subscriber: pubSub, prefix: cfg.TopicPrefix, logger: logger}, nil
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill NATS publisher: %w", err)
	}
	return &Publisher{publisher: pub, prefix: cfg.TopicPrefix, logger: logger}, nil
}

// InProcess reports whether events stay on the in-process GoChannel, in
// which case a Journal should consume them.
func (p *Publisher) InProcess() bool {
	return p.subscriber != nil
}

// Topic returns the full topic name for suffix.
func (p *Publisher) Topic(suffix string) string {
	if p.prefix == "" {
		return suffix
	}
	return p.prefix + "." + suffix
}

// StatusChanged publishes an order.status_changed event.
func (p *Publisher) StatusChanged(ctx context.Context, key tracker.OrderKey, status tracker.OrderStatus, recipients int) {
	evt := StatusChanged{
		EventID:    uuid.NewString(),
		OrderKey:   string(key),
		Status:     string(status.Code),
		Message:    status.Message,
		ETA:        status.ETA,
		Recipients: recipients,
		OccurredAt: time.Now().UTC(),
	}
	if status.Order != nil {
		evt.Restaurant = status.Order.RestaurantName
	}
	p.publishJSON(ctx, TopicStatusChanged, evt.EventID, evt)
}

// TrackingEnded publishes an order.tracking_ended event.
func (p *Publisher) TrackingEnded(ctx context.Context, key tracker.OrderKey, reason string) {
	evt := TrackingEnded{
		EventID:    uuid.NewString(),
		OrderKey:   string(key),
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
	p.publishJSON(ctx, TopicTrackingEnded, evt.EventID, evt)
}

// publishJSON never returns an error; failures are logged and counted.
func (p *Publisher) publishJSON(ctx context.Context, suffix, id string, payload any) {
	topic := p.Topic(suffix)
	err := p.publish(ctx, topic, id, payload)
	metrics.RecordEventPublished(suffix, err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("Failed to publish event")
	}
}

func (p *Publisher) publish(ctx context.Context, topic, id string, payload any) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(id, data)
	if cid := logging.CorrelationIDFromContext(ctx); cid != "" {
		msg.Metadata.Set(metadataCorrelation, cid)
	}
	if p.subscriber == nil {
		msg.Metadata.Set(natsgo.MsgIdHdr, id)
	}
	return p.publisher.Publish(topic, msg)
}

// Subscribe returns in-process messages for the topic with suffix.
func (p *Publisher) Subscribe(ctx context.Context, suffix string) (<-chan *message.Message, error) {
	if p.subscriber == nil {
		return nil, ErrNoSubscriber
	}
	return p.subscriber.Subscribe(ctx, p.Topic(suffix))
}

// Close closes the underlying publisher. It is safe to call twice.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
