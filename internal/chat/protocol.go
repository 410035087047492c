// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package chat

import (
	"errors"

	"github.com/goccy/go-json"
)

// Application close codes, in the range reserved for private use by
// RFC 6455. Each terminal failure has its own code so clients can map
// it to a user-facing message.
const (
	// CloseAuthFailure: the external user id could not be resolved.
	CloseAuthFailure = 4001
	// CloseNotFound: the requested conversation does not exist.
	CloseNotFound = 4002
	// CloseForbidden: the user is neither a participant nor privileged.
	CloseForbidden = 4003
	// CloseRateLimited: the connection exceeded the message rate limit.
	CloseRateLimited = 4004
)

// Message type tags with special handling in the session loop.
const (
	TypePing = "ping"
	TypePong = "pong"
	TypeText = "text"
)

// Event names broadcast by the built-in handlers.
const (
	EventMessage = "message"
	EventTyping  = "typing"
)

// ErrUnknownType is returned by Dispatcher.Dispatch when no handler is
// registered for a message type.
var ErrUnknownType = errors.New("unknown message type")

// ErrBrokerUnavailable is returned by bridge operations when no broker
// connection is established. Callers degrade to local-only fan-out.
var ErrBrokerUnavailable = errors.New("pubsub broker unavailable")

// EventEnvelope is the outbound wrapper for business notifications.
type EventEnvelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// ErrorEnvelope is the outbound wrapper for recoverable per-connection
// problems. Receiving one does not mean the connection is closing.
type ErrorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewErrorEnvelope builds an error envelope with status "error".
func NewErrorEnvelope(msg string) ErrorEnvelope {
	return ErrorEnvelope{Status: "error", Message: msg}
}

// pongFrame is the fixed reply to a heartbeat ping.
var pongFrame = []byte(`{"type":"pong"}`)

// textFrame is the wrapper applied to non-structured inbound text.
type textFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ParseFrame classifies one inbound frame and returns its message type
// together with the JSON bytes handlers should see.
//
// A JSON object with a non-empty "type" passes through untouched, so
// handler-specific fields survive. The literal string "ping" (quoted or
// bare) is normalized to a ping frame. Anything else, including
// malformed JSON and objects without a "type", wraps as a text frame
// rather than failing the connection.
func ParseFrame(data []byte) (msgType string, raw []byte) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.Type != "" {
		return probe.Type, data
	}

	var literal string
	if err := json.Unmarshal(data, &literal); err == nil && literal == TypePing {
		return TypePing, data
	}
	if string(data) == TypePing {
		return TypePing, data
	}

	wrapped, err := json.Marshal(textFrame{Type: TypeText, Content: string(data)})
	if err != nil {
		// string content always marshals; keep the fallback total anyway
		wrapped = []byte(`{"type":"text","content":""}`)
	}
	return TypeText, wrapped
}
