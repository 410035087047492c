// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package chat

import (
	"errors"

	"github.com/goccy/go-json"
)

// typingRequest is the inbound body of a "typing" frame.
type typingRequest struct {
	IsTyping bool `json:"is_typing"`
}

// TypingEvent is broadcast to a room when a participant starts or
// stops typing.
type TypingEvent struct {
	ChatID   int64 `json:"chat_id"`
	UserID   int64 `json:"user_id"`
	IsTyping bool  `json:"is_typing"`
}

// textRequest is the inbound body of a "text" frame.
type textRequest struct {
	Content string `json:"content"`
}

// MessageEvent is broadcast to a room for each chat message.
type MessageEvent struct {
	ChatID  int64  `json:"chat_id"`
	UserID  int64  `json:"user_id"`
	Content string `json:"content"`
}

// RegisterBuiltins installs the core message handlers on a dispatcher.
func RegisterBuiltins(d *Dispatcher) {
	d.Register("typing", handleTyping)
	d.Register(TypeText, handleText)
}

// handleTyping records the sender's typing state and notifies the room,
// sender included.
func handleTyping(mc *MessageContext) error {
	var req typingRequest
	if err := json.Unmarshal(mc.Raw, &req); err != nil {
		return errors.New("invalid typing payload")
	}

	mc.Typing.Set(mc.Room, mc.User.ID, req.IsTyping)

	return mc.Broadcaster.Event(mc.Room, EventTyping, TypingEvent{
		ChatID:   mc.Room,
		UserID:   mc.User.ID,
		IsTyping: req.IsTyping,
	})
}

// handleText broadcasts a chat message to the room, sender included.
func handleText(mc *MessageContext) error {
	var req textRequest
	if err := json.Unmarshal(mc.Raw, &req); err != nil {
		return errors.New("invalid text payload")
	}

	return mc.Broadcaster.Event(mc.Room, EventMessage, MessageEvent{
		ChatID:  mc.Room,
		UserID:  mc.User.ID,
		Content: req.Content,
	})
}
