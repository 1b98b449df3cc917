// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

// Package events carries the in-process diagnostic stream: every
// upstream fetch attempt is published to a topic that the relay
// service consumes for operator-facing logging. The stream is
// advisory; losing it never affects request handling.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/rosterline/internal/logging"
	"github.com/tomtom215/rosterline/internal/upstream"
)

// TopicFetchAttempts is the topic carrying upstream attempt records.
const TopicFetchAttempts = "roster.fetch.attempts"

// Bus is an in-process pub/sub channel for diagnostic events.
//
// Thread safety: safe for concurrent use.
type Bus struct {
	pubsub *gochannel.GoChannel
	mu     sync.RWMutex
	closed bool
}

// NewBus creates the event bus with a small per-subscriber buffer.
// Slow subscribers drop messages rather than block publishers.
func NewBus() *Bus {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            64,
		BlockPublishUntilSubscriberAck: false,
	}, newLoggerAdapter())

	return &Bus{pubsub: pubsub}
}

// PublishAttempt serializes and publishes one attempt record.
// Fire-and-forget: failures are logged and swallowed so the fetch
// path never stalls on diagnostics.
func (b *Bus) PublishAttempt(ctx context.Context, attempt upstream.Attempt) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	payload, err := json.Marshal(attempt)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to serialize attempt event")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("variant", attempt.Variant)
	if id := logging.RequestIDFromContext(ctx); id != "" {
		msg.Metadata.Set("request_id", id)
	}

	if err := b.pubsub.Publish(TopicFetchAttempts, msg); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to publish attempt event")
	}
}

// Subscribe returns the message stream for a topic. The channel closes
// when ctx is cancelled or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	msgs, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return msgs, nil
}

// Close shuts the bus down. Subsequent publishes are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}

// DecodeAttempt unmarshals an attempt record from a bus message.
func DecodeAttempt(msg *message.Message) (upstream.Attempt, error) {
	var attempt upstream.Attempt
	if err := json.Unmarshal(msg.Payload, &attempt); err != nil {
		return upstream.Attempt{}, fmt.Errorf("decode attempt event: %w", err)
	}
	return attempt, nil
}
