// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

// Package metrics provides Prometheus instrumentation for Relaydesk.
//
// Collectors are registered via promauto at package load and exposed by
// the HTTP layer through promhttp on GET /metrics. Instrumented areas:
//
//   - WebSocket connections and room occupancy
//   - Event fan-out (deliveries, per-connection send failures)
//   - Per-connection rate limiting
//   - PubSub bridge traffic (publishes, relays, errors)
//   - HTTP request counts and latency
package metrics
