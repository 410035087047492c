// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/relaydesk/relaydesk/internal/logging"
	"github.com/relaydesk/relaydesk/internal/metrics"
)

const (
	// bridgePollInterval bounds each wait on the broker so subscription
	// teardown is observed promptly.
	bridgePollInterval = time.Second

	bridgeConnectTimeout = 5 * time.Second
	bridgeReconnectWait  = 2 * time.Second
)

// LocalDeliverer receives relayed payloads from sibling instances.
// Satisfied by *Broadcaster.
type LocalDeliverer interface {
	DeliverLocal(room int64, payload []byte)
}

// bridgeEnvelope is the wire format on broker channels. Origin carries
// the publishing instance's id; an instance drops its own traffic
// because local fan-out already happened at publish time.
type bridgeEnvelope struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

// roomSubscription owns one background reader relaying a room's broker
// channel into the local broadcaster.
type roomSubscription struct {
	sub  *nats.Subscription
	stop chan struct{}
}

// Bridge extends room broadcasts across server instances through NATS.
// One subscription exists per locally-occupied room; the Registry
// drives Subscribe/Unsubscribe on occupancy transitions.
//
// Every failure mode degrades to local-only fan-out. A bridge that
// never connected accepts Subscribe/Publish calls as logged no-ops.
type Bridge struct {
	url        string
	instanceID string
	local      LocalDeliverer

	mu   sync.Mutex
	nc   *nats.Conn
	subs map[int64]*roomSubscription

	breaker *gobreaker.CircuitBreaker[any]
}

// NewBridge creates a bridge for the broker at url. Connect must be
// called before the bridge relays anything.
func NewBridge(url string, local LocalDeliverer) *Bridge {
	settings := gobreaker.Settings{
		Name:    "bridge-publish",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).
				Str("to", to.String()).Msg("bridge circuit breaker state changed")
		},
	}

	return &Bridge{
		url:        url,
		instanceID: uuid.NewString(),
		local:      local,
		subs:       make(map[int64]*roomSubscription),
		breaker:    gobreaker.NewCircuitBreaker[any](settings),
	}
}

// InstanceID returns the origin tag this instance stamps on published
// envelopes.
func (b *Bridge) InstanceID() string { return b.instanceID }

// SetLocal binds the local deliverer. The bridge, registry, and
// broadcaster reference each other, so one of the edges has to be bound
// after construction; this must happen before Connect.
func (b *Bridge) SetLocal(local LocalDeliverer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.local = local
}

// Connect establishes the broker connection. It is idempotent: calling
// it on a connected bridge is a no-op. The client reconnects on its own
// after transient outages; subscriptions survive reconnects.
func (b *Bridge) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.nc != nil && !b.nc.IsClosed() {
		return nil
	}

	nc, err := nats.Connect(b.url,
		nats.Name("relaydesk"),
		nats.Timeout(bridgeConnectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(bridgeReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("broker connection lost, relaying suspended")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("broker connection restored")
		}),
	)
	if err != nil {
		metrics.BridgeErrors.WithLabelValues("connect").Inc()
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}

	b.nc = nc
	logging.Info().Str("url", nc.ConnectedUrl()).Str("instance_id", b.instanceID).
		Msg("connected to pubsub broker")
	return nil
}

// Enabled reports whether cross-instance relay is currently possible.
func (b *Bridge) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nc != nil && b.nc.IsConnected()
}

// roomSubject names the broker channel for a room.
func roomSubject(room int64) string {
	return fmt.Sprintf("chat.room.%d", room)
}

// Subscribe starts the background relay for a room's channel. Exactly
// one subscription may exist per room; duplicate calls are no-ops, as
// are calls on a bridge that never connected.
func (b *Bridge) Subscribe(room int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.nc == nil {
		logging.Debug().Int64("chat_id", room).Msg("bridge not connected, room is local-only")
		return
	}
	if _, exists := b.subs[room]; exists {
		return
	}

	sub, err := b.nc.SubscribeSync(roomSubject(room))
	if err != nil {
		metrics.BridgeErrors.WithLabelValues("subscribe").Inc()
		logging.Error().Err(err).Int64("chat_id", room).Msg("broker subscribe failed, room is local-only")
		return
	}
	// Flush so the subscription is registered broker-side before Subscribe
	// returns; otherwise a sibling's publish can race the SUB and be lost.
	if err := b.nc.FlushTimeout(bridgeConnectTimeout); err != nil {
		logging.Warn().Err(err).Int64("chat_id", room).Msg("broker flush after subscribe failed")
	}

	rs := &roomSubscription{
		sub:  sub,
		stop: make(chan struct{}),
	}
	b.subs[room] = rs
	metrics.BridgeSubscriptions.Set(float64(len(b.subs)))

	go b.readLoop(room, rs)
	logging.Debug().Int64("chat_id", room).Msg("bridge subscription started")
}

// Unsubscribe stops the room's relay and unsubscribes from the broker.
// Safe to call when no subscription exists.
//
// It must not wait for the reader to exit: the relay path itself
// reaches here when a delivery failure empties a room, and the reader
// cannot join itself. The reader drains on its own, observing either
// the closed stop channel or ErrBadSubscription from the canceled
// subscription.
func (b *Bridge) Unsubscribe(room int64) {
	b.mu.Lock()
	rs, exists := b.subs[room]
	if exists {
		delete(b.subs, room)
		metrics.BridgeSubscriptions.Set(float64(len(b.subs)))
	}
	b.mu.Unlock()

	if !exists {
		return
	}

	close(rs.stop)
	if err := rs.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		logging.Debug().Err(err).Int64("chat_id", room).Msg("broker unsubscribe failed")
	}
	logging.Debug().Int64("chat_id", room).Msg("bridge subscription stopped")
}

// readLoop polls the subscription with a bounded wait and relays
// foreign-origin envelopes into the local broadcaster.
func (b *Bridge) readLoop(room int64, rs *roomSubscription) {
	for {
		select {
		case <-rs.stop:
			return
		default:
		}

		msg, err := rs.sub.NextMsg(bridgePollInterval)
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			if errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
				return
			}
			metrics.BridgeErrors.WithLabelValues("receive").Inc()
			logging.Warn().Err(err).Int64("chat_id", room).Msg("bridge read failed")
			continue
		}

		var env bridgeEnvelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			metrics.BridgeErrors.WithLabelValues("receive").Inc()
			logging.Warn().Err(err).Int64("chat_id", room).Msg("dropping malformed bridge envelope")
			continue
		}
		if env.Origin == b.instanceID {
			continue
		}

		metrics.BridgeRelayed.Inc()
		b.local.DeliverLocal(room, env.Data)
	}
}

// Publish sends a payload to the room's broker channel so sibling
// instances relay it to their local connections. Failures are logged
// and returned; callers must not treat them as fatal.
func (b *Bridge) Publish(room int64, data []byte) error {
	b.mu.Lock()
	nc := b.nc
	b.mu.Unlock()

	if nc == nil || !nc.IsConnected() {
		return ErrBrokerUnavailable
	}

	raw, err := json.Marshal(bridgeEnvelope{Origin: b.instanceID, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal bridge envelope: %w", err)
	}

	_, err = b.breaker.Execute(func() (any, error) {
		return nil, nc.Publish(roomSubject(room), raw)
	})
	if err != nil {
		metrics.BridgeErrors.WithLabelValues("publish").Inc()
		return fmt.Errorf("bridge publish failed: %w", err)
	}

	metrics.BridgePublished.Inc()
	return nil
}

// Close tears down all subscriptions and the broker connection, used at
// process shutdown.
func (b *Bridge) Close() {
	b.mu.Lock()
	rooms := make([]int64, 0, len(b.subs))
	for room := range b.subs {
		rooms = append(rooms, room)
	}
	b.mu.Unlock()

	for _, room := range rooms {
		b.Unsubscribe(room)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nc != nil {
		b.nc.Close()
		b.nc = nil
	}
	logging.Info().Msg("bridge disconnected from pubsub broker")
}

// Serve implements suture.Service. It connects to the broker and blocks
// until the context is canceled; a failed connect returns the error so
// the supervisor retries with backoff while the rest of the service
// keeps running local-only.
func (b *Bridge) Serve(ctx context.Context) error {
	if err := b.Connect(); err != nil {
		return err
	}
	<-ctx.Done()
	b.Close()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (b *Bridge) String() string { return "pubsub-bridge" }
