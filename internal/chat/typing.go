// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package chat

import (
	"sync"
	"time"
)

// TypingExpiry is the advisory staleness window for typing entries.
// Readers must treat entries older than this as absent; no timer evicts
// them proactively.
const TypingExpiry = 3 * time.Second

// TypingTracker holds ephemeral per-room typing presence: room id ->
// user id -> timestamp of the last typing signal. An explicit stop or a
// disconnect deletes the entry outright.
type TypingTracker struct {
	mu    sync.Mutex
	rooms map[int64]map[int64]time.Time

	// now is the clock, injectable for tests.
	now func() time.Time
}

// NewTypingTracker creates an empty tracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		rooms: make(map[int64]map[int64]time.Time),
		now:   time.Now,
	}
}

// Set records a typing signal for (room, user) when isTyping is true
// and deletes the entry when false. Explicit stop always wins over
// timeout-based staleness.
func (t *TypingTracker) Set(room, user int64, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !isTyping {
		t.deleteLocked(room, user)
		return
	}

	users, ok := t.rooms[room]
	if !ok {
		users = make(map[int64]time.Time)
		t.rooms[room] = users
	}
	users[user] = t.now()
}

// ClearUser removes the user's typing entry for the room, used on
// disconnect cleanup.
func (t *TypingTracker) ClearUser(room, user int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deleteLocked(room, user)
}

// deleteLocked removes the entry and drops the room map when empty.
// Must be called with mu held.
func (t *TypingTracker) deleteLocked(room, user int64) {
	users, ok := t.rooms[room]
	if !ok {
		return
	}
	delete(users, user)
	if len(users) == 0 {
		delete(t.rooms, room)
	}
}

// ActiveUsers returns the users whose typing entries have not expired.
func (t *TypingTracker) ActiveUsers(room int64) []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.rooms[room]
	if !ok {
		return nil
	}
	cutoff := t.now().Add(-TypingExpiry)
	active := make([]int64, 0, len(users))
	for user, ts := range users {
		if ts.After(cutoff) {
			active = append(active, user)
		}
	}
	return active
}

// IsTyping reports whether (room, user) has a live typing entry.
func (t *TypingTracker) IsTyping(room, user int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.rooms[room]
	if !ok {
		return false
	}
	ts, ok := users[user]
	return ok && ts.After(t.now().Add(-TypingExpiry))
}
