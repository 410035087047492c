// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/relaydesk/relaydesk/internal/directory"
	"github.com/relaydesk/relaydesk/internal/logging"
)

// MessageContext carries everything a handler needs to process one
// inbound frame. Raw holds the full frame bytes so handlers can decode
// type-specific fields without the session loop knowing about them.
type MessageContext struct {
	Ctx    context.Context
	Client *Client
	Room   int64
	User   directory.User
	Type   string
	Raw    []byte

	Broadcaster *Broadcaster
	Typing      *TypingTracker
}

// HandlerFunc processes one inbound message. A returned error is
// reported to the sending connection as an error envelope; it never
// terminates the connection.
type HandlerFunc func(mc *MessageContext) error

// Dispatcher maps message-type tags to handlers. Handlers are
// registered during process startup, before any connection is accepted;
// Dispatch is then read-only and safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewDispatcher creates an empty dispatch table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

// Register adds a handler for a message type, replacing any previous
// registration for the same type.
func (d *Dispatcher) Register(msgType string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[msgType] = fn
}

// Types returns the registered message types, for introspection.
func (d *Dispatcher) Types() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	types := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	return types
}

// Dispatch looks up and invokes the handler for mc.Type. An
// unregistered type returns ErrUnknownType. Handler errors and panics
// are contained and returned, never propagated to the session loop.
func (d *Dispatcher) Dispatch(mc *MessageContext) (err error) {
	d.mu.RLock()
	fn, ok := d.handlers[mc.Type]
	d.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, mc.Type)
	}

	defer func() {
		if rec := recover(); rec != nil {
			logging.Error().Interface("panic", rec).Str("type", mc.Type).
				Int64("chat_id", mc.Room).Msg("handler panicked")
			err = fmt.Errorf("handler for %q failed", mc.Type)
		}
	}()

	return fn(mc)
}
