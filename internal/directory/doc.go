// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

// Package directory resolves users and conversations against the
// business backend. Relaydesk does not own identity or conversation
// state; it consumes both through the narrow Directory interface:
//
//	ResolveUserByExternalID(ctx, ext) -> User (identity + role)
//	ResolveConversation(ctx, id)      -> Conversation (participant ids)
//
// Two implementations exist: HTTPDirectory talks to the backend's REST
// API with a bounded timeout, and StaticDirectory serves in-memory
// fixtures for development and tests.
package directory
