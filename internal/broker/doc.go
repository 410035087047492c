// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

// Package broker runs an embedded NATS server for single-box
// deployments that want distributed-mode semantics without operating a
// separate broker. Multi-instance deployments point the bridge at an
// external NATS cluster instead and never touch this package.
package broker
