// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

// Package main is the entry point for the Relaydesk relay server.
//
// Relaydesk is the realtime leg of a support-chat platform: it accepts
// WebSocket connections from customers and agents, fans chat traffic
// out to everyone in a conversation, and optionally relays it across
// server instances through NATS.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered settings from defaults, config file, and
//     environment variables (Koanf v2)
//  2. Broker (optional): embedded NATS server for single-box
//     distributed mode
//  3. Chat core: registry, bridge, broadcaster, dispatcher, typing
//     tracker, and rate limiter
//  4. Directory: user and conversation resolution, either a remote
//     HTTP service or the in-process static store
//  5. HTTP server: WebSocket entry point, REST surface, health probes,
//     and Prometheus metrics
//
// Components 2-5 run under a suture supervision tree. A broker outage
// degrades the relay to local-only fan-out; it never takes down chat.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (SERVER_PORT, NATS_URL, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP
// server stops accepting connections, every chat connection receives a
// close frame, and broker subscriptions are torn down.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relaydesk/relaydesk/internal/api"
	"github.com/relaydesk/relaydesk/internal/broker"
	"github.com/relaydesk/relaydesk/internal/chat"
	"github.com/relaydesk/relaydesk/internal/config"
	"github.com/relaydesk/relaydesk/internal/directory"
	"github.com/relaydesk/relaydesk/internal/logging"
	"github.com/relaydesk/relaydesk/internal/supervisor"
	"github.com/relaydesk/relaydesk/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Int("port", cfg.Server.Port).
		Bool("distributed", cfg.NATS.Enabled).
		Str("directory_mode", cfg.Directory.Mode).
		Msg("Starting Relaydesk")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional embedded broker for single-box distributed mode.
	var embedded *broker.Embedded
	natsURL := cfg.NATS.URL
	if cfg.NATS.Enabled && cfg.NATS.Embedded {
		embedded, err = broker.Start(broker.Options{
			Host:     "127.0.0.1",
			Port:     cfg.NATS.EmbeddedPort,
			StoreDir: cfg.NATS.StoreDir,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded broker")
		}
		natsURL = embedded.ClientURL()
	}

	// Chat core. The bridge, registry, and broadcaster form a cycle
	// (bridge relays into the broadcaster, the registry drives bridge
	// subscriptions), so the bridge's deliverer is bound last.
	var bridge *chat.Bridge
	var subs chat.SubscriptionManager
	if cfg.NATS.Enabled {
		bridge = chat.NewBridge(natsURL, nil)
		subs = bridge
	}
	registry := chat.NewRegistry(subs)

	var publisher chat.BridgePublisher
	if bridge != nil {
		publisher = bridge
	}
	broadcaster := chat.NewBroadcaster(registry, publisher)
	if bridge != nil {
		bridge.SetLocal(broadcaster)
	}

	dispatcher := chat.NewDispatcher()
	chat.RegisterBuiltins(dispatcher)
	typing := chat.NewTypingTracker()
	limiter := chat.NewRateLimiter(cfg.RateLimit.Times, cfg.RateLimit.Window())

	var dir directory.Directory
	switch cfg.Directory.Mode {
	case "http":
		dir = directory.NewHTTPDirectory(cfg.Directory.BaseURL, cfg.Directory.Timeout)
		logging.Info().Str("base_url", cfg.Directory.BaseURL).Msg("Using HTTP directory")
	default:
		dir = directory.NewStaticDirectory()
		logging.Warn().Msg("Using static directory; suitable for development only")
	}

	sessions := chat.NewSessions(dir, registry, broadcaster, dispatcher, typing, limiter)
	handler := api.NewHandler(cfg, sessions, registry, broadcaster, typing, publisher)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler).Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if bridge != nil {
		tree.AddMessagingService(bridge)
		logging.Info().Str("url", natsURL).Msg("Bridge service added to supervisor tree")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	// Close what the supervisor does not own: live chat connections and
	// the embedded broker.
	registry.CloseAll()
	if embedded != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := embedded.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Embedded broker shutdown error")
		}
		shutdownCancel()
	}

	logging.Info().Msg("Relaydesk stopped")
}
