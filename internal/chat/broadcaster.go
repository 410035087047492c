// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package chat

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/relaydesk/relaydesk/internal/logging"
	"github.com/relaydesk/relaydesk/internal/metrics"
)

// BridgePublisher is the broadcaster's view of the pub/sub bridge. A
// nil publisher, or one reporting Enabled() == false, means local-only
// mode.
type BridgePublisher interface {
	Publish(room int64, data []byte) error
	Enabled() bool
}

// Broadcaster fans messages out to a room. Delivery runs against a
// registry snapshot, outside the registry lock, so a slow client never
// stalls membership changes. Per-connection failures are collected and
// cleaned up; they never abort delivery to the rest of the room.
type Broadcaster struct {
	registry *Registry
	bridge   BridgePublisher
}

// NewBroadcaster creates a broadcaster over the registry. bridge may be
// nil for local-only mode.
func NewBroadcaster(registry *Registry, bridge BridgePublisher) *Broadcaster {
	return &Broadcaster{registry: registry, bridge: bridge}
}

// Deliver sends the payload to every connection currently in the room's
// snapshot and returns the number of successful sends. Connections
// whose channel is closed or congested are deregistered and closed.
func (b *Broadcaster) Deliver(room int64, payload []byte) int {
	snapshot := b.registry.SnapshotRoom(room)
	if len(snapshot) == 0 {
		return 0
	}

	delivered := 0
	var failed []*Client
	for _, c := range snapshot {
		res := c.TrySend(payload)
		if res.OK {
			delivered++
			continue
		}
		failed = append(failed, c)
		metrics.DeliveryFailures.Inc()
		logging.Warn().Uint64("client_id", c.ID()).Int64("chat_id", room).
			Bool("closed", res.Closed).Msg("dropping connection after failed send")
	}

	for _, c := range failed {
		b.registry.Leave(room, c)
		b.registry.UnindexUser(c.User().ID, c)
		c.markClosed()
	}

	return delivered
}

// DeliverLocal is the relay entry point used by the bridge for messages
// arriving from sibling instances: local fan-out only, no re-publish,
// so relayed traffic cannot loop.
func (b *Broadcaster) DeliverLocal(room int64, payload []byte) {
	b.Deliver(room, payload)
}

// Publish delivers locally and, when distributed mode is enabled, hands
// the payload to the bridge for cross-instance relay. Bridge failures
// are logged and never block or fail local delivery.
func (b *Broadcaster) Publish(room int64, payload []byte) int {
	delivered := b.Deliver(room, payload)

	if b.bridge != nil && b.bridge.Enabled() {
		if err := b.bridge.Publish(room, payload); err != nil {
			logging.Warn().Err(err).Int64("chat_id", room).Msg("bridge publish failed, delivered locally only")
		}
	}
	return delivered
}

// Event serializes an event envelope once and publishes it to the room,
// locally and across instances.
func (b *Broadcaster) Event(room int64, event string, payload interface{}) error {
	data, err := json.Marshal(EventEnvelope{Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event, err)
	}
	delivered := b.Publish(room, data)
	metrics.RecordDelivery(event, delivered)
	return nil
}

// Emit is the entry point for server-originated events pushed from
// outside the connection loop (e.g. a message created over REST).
func (b *Broadcaster) Emit(room int64, event string, payload interface{}) error {
	return b.Event(room, event, payload)
}

// SendError reports a recoverable problem to one connection using the
// error envelope. The connection stays open.
func (b *Broadcaster) SendError(c *Client, msg string) {
	data, err := json.Marshal(NewErrorEnvelope(msg))
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal error envelope")
		return
	}
	if res := c.TrySend(data); !res.OK {
		logging.Debug().Uint64("client_id", c.ID()).Bool("closed", res.Closed).
			Msg("could not deliver error envelope")
	}
}
