// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package websocket

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/golazo-live/golazod/internal/datacache"
	"github.com/golazo-live/golazod/internal/logging"
)

// Bridge forwards fixture update events from the in-process pub/sub to
// the WebSocket hub, so every successful fetch reaches connected
// clients without the coordinator knowing about the hub.
type Bridge struct {
	hub *Hub
	sub message.Subscriber
}

// NewBridge creates a bridge between a pub/sub subscriber and the hub.
func NewBridge(hub *Hub, sub message.Subscriber) *Bridge {
	return &Bridge{hub: hub, sub: sub}
}

// Serve consumes fixture update events until ctx is cancelled. It
// satisfies suture.Service.
func (b *Bridge) Serve(ctx context.Context) error {
	messages, err := b.sub.Subscribe(ctx, datacache.TopicFixturesUpdated)
	if err != nil {
		return err
	}

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return ctx.Err()
			}
			b.forward(msg)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// String names the service in supervisor logs.
func (b *Bridge) String() string { return "websocket-bridge" }

func (b *Bridge) forward(msg *message.Message) {
	defer msg.Ack()

	var event datacache.FixturesUpdated
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping malformed fixture update event")
		return
	}
	b.hub.Broadcast(Message{Type: MessageTypeFixtures, Data: event})
}
