// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/relaydesk/relaydesk/internal/logging"
)

// readyTimeout bounds how long startup waits for the embedded server to
// accept connections.
const readyTimeout = 30 * time.Second

// Options configures the embedded broker.
type Options struct {
	Host string
	// Port for client connections. Use -1 for an ephemeral port.
	Port int
	// StoreDir is reserved for future persistence; plain pub/sub does
	// not write to it.
	StoreDir string
}

// Embedded wraps an in-process NATS server with lifecycle management.
// Chat fan-out is fire-and-forget, so the server runs plain pub/sub
// without JetStream.
type Embedded struct {
	server    *server.Server
	clientURL string
}

// Start creates and starts an embedded NATS server, blocking until it
// accepts connections or the ready timeout passes.
func Start(opts Options) (*Embedded, error) {
	ns, err := server.NewServer(&server.Options{
		ServerName: "relaydesk-broker",
		Host:       opts.Host,
		Port:       opts.Port,
		JetStream:  false,
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: 1024 * 1024, // 1MB, well above the frame size limit
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded broker: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded broker not ready within %s", readyTimeout)
	}

	logging.Info().Str("url", ns.ClientURL()).Msg("embedded pubsub broker started")
	return &Embedded{server: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the connection URL for bridge clients.
func (e *Embedded) ClientURL() string {
	return e.clientURL
}

// Running reports whether the server is accepting connections.
func (e *Embedded) Running() bool {
	return e.server.Running()
}

// Shutdown stops the server and waits for it to wind down or the
// context to expire.
func (e *Embedded) Shutdown(ctx context.Context) error {
	e.server.Shutdown()

	done := make(chan struct{})
	go func() {
		e.server.WaitForShutdown()
		close(done)
	}()

	select {
	case <-done:
		logging.Info().Msg("embedded pubsub broker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
