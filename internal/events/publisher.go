// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

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
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/bookfinder/internal/breaker"
	"github.com/tomtom215/bookfinder/internal/config"
	"github.com/tomtom215/bookfinder/internal/logging"
	"github.com/tomtom215/bookfinder/internal/metrics"
	"github.com/tomtom215/bookfinder/internal/recommend"
)

// DefaultTopic is used when no subject is configured.
const DefaultTopic = "recommendations.updated"

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("events: publisher is closed")

// Publisher announces stored recommendation changes on a Watermill
// publisher. It implements recommend.Notifier.
type Publisher struct {
	publisher message.Publisher
	topic     string
	breaker   *breaker.Breaker
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
}

var _ recommend.Notifier = (*Publisher)(nil)

// NewPublisher wraps pub. An empty topic uses DefaultTopic.
func NewPublisher(pub message.Publisher, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		publisher: pub,
		topic:     topic,
		breaker:   breaker.New("events", breaker.Settings{}),
		now:       time.Now,
	}
}

// NewNATSPublisher connects to the NATS server in cfg and publishes on
// core NATS subjects.
func NewNATSPublisher(cfg *config.EventsConfig) (*Publisher, error) {
	if cfg.NATSURL == "" {
		return nil, errors.New("events: NATS_URL is required")
	}

	logger := watermill.NewSlogLogger(logging.NewSlogLogger())

	natsOpts := []natsgo.Option{
		natsgo.Name("bookfinder"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled: true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return NewPublisher(pub, cfg.Subject), nil
}

// Topic returns the topic events are published on.
func (p *Publisher) Topic() string {
	return p.topic
}

// RecommendationsUpdated publishes a RecommendationsUpdated event.
func (p *Publisher) RecommendationsUpdated(ctx context.Context, userID string, count int, runID string) error {
	event := &RecommendationsUpdated{
		EventID:    uuid.NewString(),
		UserID:     userID,
		Count:      count,
		RunID:      runID,
		OccurredAt: p.now().UTC(),
	}

	msg, err := event.Message()
	if err != nil {
		return err
	}
	msg.SetContext(ctx)

	err = p.Publish(msg)
	metrics.RecordEventPublish(err)
	return err
}

// Publish sends msg on the publisher's topic through the circuit breaker.
func (p *Publisher) Publish(msg *message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}
	return p.breaker.Do(func() error {
		return p.publisher.Publish(p.topic, msg)
	})
}

// Close shuts down the underlying publisher. It is safe to call twice.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
