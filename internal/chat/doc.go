// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

/*
Package chat implements the realtime core of Relaydesk: room membership,
message fan-out, cross-instance relay, per-connection rate limiting,
typing presence, and the per-connection session loop.

# Components

  - Registry: the authoritative map of room -> connections and
    user -> connections. All mutations run under one coarse mutex; reads
    for fan-out take point-in-time snapshots so slow clients never stall
    registry operations.

  - Broadcaster: serialize-once fan-out to a room snapshot. Send
    failures on one connection are collected and cleaned up without
    aborting delivery to the rest of the room. Publish additionally
    hands the payload to the Bridge for cross-instance relay.

  - Bridge: per-room NATS subscriptions created when a room gains its
    first local connection and torn down when it loses its last one.
    Payloads are origin-tagged so an instance drops its own broker
    traffic. A missing or unreachable broker degrades the service to
    local-only fan-out; it never takes client connections down.

  - RateLimiter: sliding window of N frames per M seconds per
    connection. A violation closes the connection with a dedicated close
    code to force client backoff.

  - TypingTracker: ephemeral (room, user) -> last-typing timestamps with
    a 3 second advisory expiry. Cleared on explicit stop and on
    disconnect.

  - Dispatcher: the message-type -> handler table. New inbound message
    behaviors are added by registering a handler at startup; the session
    loop itself never changes.

  - Session: the connection lifecycle orchestrator. Authenticates and
    authorizes against the directory, registers the connection, runs the
    receive loop (rate gate -> parse -> dispatch), and guarantees
    deregistration on every exit path.

# Wire protocol

Inbound frames are JSON objects with a "type" field. A literal "ping"
(or {"type":"ping"}) is answered with {"type":"pong"} and never
dispatched. Frames that are not JSON objects are wrapped as
{"type":"text","content":<raw>}.

Outbound messages use two envelope shapes:

	{"event": <string>, "payload": <object>}       business events
	{"status": "error", "message": <string>}       recoverable errors

Connection-terminating conditions use close codes 4001 (authentication
failure), 4002 (conversation not found), 4003 (forbidden), and 4004
(rate limit exceeded).
*/
package chat
