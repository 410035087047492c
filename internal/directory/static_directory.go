// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package directory

import (
	"context"
	"sync"
)

// StaticDirectory is an in-memory Directory used in development and
// tests. Records are copied on read so callers cannot mutate the store.
type StaticDirectory struct {
	mu            sync.RWMutex
	users         map[string]User
	conversations map[int64]Conversation
}

// NewStaticDirectory creates an empty static directory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		users:         make(map[string]User),
		conversations: make(map[int64]Conversation),
	}
}

// AddUser registers a user keyed by its external id.
func (d *StaticDirectory) AddUser(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ExternalID] = u
}

// AddConversation registers a conversation keyed by its id.
func (d *StaticDirectory) AddConversation(c Conversation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conversations[c.ID] = c
}

// ResolveUserByExternalID implements Directory.
func (d *StaticDirectory) ResolveUserByExternalID(_ context.Context, externalID string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// ResolveConversation implements Directory.
func (d *StaticDirectory) ResolveConversation(_ context.Context, id int64) (*Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := Conversation{ID: c.ID, ParticipantIDs: append([]int64(nil), c.ParticipantIDs...)}
	return &out, nil
}
