// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

// Package api provides HTTP routing using the Chi router: the
// WebSocket entry point for chat connections, a small REST surface for
// server-originated events and room introspection, health probes, and
// the Prometheus metrics endpoint.
package api
