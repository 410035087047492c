// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package chat

import (
	"sort"
	"sync"

	"github.com/relaydesk/relaydesk/internal/logging"
	"github.com/relaydesk/relaydesk/internal/metrics"
)

// SubscriptionManager receives room occupancy transitions. The Registry
// calls Subscribe when a room gains its first connection and
// Unsubscribe when it loses its last one, always outside its own
// mutex: implementations may block on the broker or re-enter the
// registry. A nil manager means local-only mode.
type SubscriptionManager interface {
	Subscribe(room int64)
	Unsubscribe(room int64)
}

// Registry is the authoritative map of room -> connections and
// user -> connections. One coarse mutex guards both maps; occupancy
// transitions are detected under the lock and their hooks invoked
// after it is released.
type Registry struct {
	mu    sync.Mutex
	rooms map[int64]map[*Client]struct{}
	users map[int64]map[*Client]struct{}
	subs  SubscriptionManager
}

// NewRegistry creates an empty registry. subs may be nil.
func NewRegistry(subs SubscriptionManager) *Registry {
	return &Registry{
		rooms: make(map[int64]map[*Client]struct{}),
		users: make(map[int64]map[*Client]struct{}),
		subs:  subs,
	}
}

// Join idempotently adds the connection to the room's set. The room is
// created on first use; its broker subscription is established on the
// empty -> occupied transition.
//
// Subscription hooks run after the mutex is released. The bridge's
// relay path re-enters the registry, so a hook invoked under the lock
// would deadlock; it also keeps broker round-trips from stalling every
// other room.
func (r *Registry) Join(room int64, c *Client) {
	r.mu.Lock()
	set, ok := r.rooms[room]
	first := !ok
	if first {
		set = make(map[*Client]struct{})
		r.rooms[room] = set
	}
	if _, dup := set[c]; dup {
		r.mu.Unlock()
		return
	}
	set[c] = struct{}{}
	size := len(set)

	metrics.ConnectionsActive.Inc()
	metrics.RoomsActive.Set(float64(len(r.rooms)))
	r.mu.Unlock()

	if first && r.subs != nil {
		r.subs.Subscribe(room)
	}
	logging.Debug().Int64("chat_id", room).Uint64("client_id", c.ID()).
		Int("room_size", size).Msg("connection joined room")
}

// Leave removes the connection from the room's set. When the set
// becomes empty the room entry is removed and its broker subscription
// torn down. Leaving a room never joined is a no-op.
//
// The unsubscribe hook runs after the mutex is released, for the same
// reason as in Join: the bridge relay path calls Leave while cleaning
// up failed members, and must not find the lock held across a hook
// that joins it.
func (r *Registry) Leave(room int64, c *Client) {
	r.mu.Lock()
	set, ok := r.rooms[room]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, member := set[c]; !member {
		r.mu.Unlock()
		return
	}
	delete(set, c)
	metrics.ConnectionsActive.Dec()

	emptied := len(set) == 0
	if emptied {
		delete(r.rooms, room)
	}
	size := len(set)
	metrics.RoomsActive.Set(float64(len(r.rooms)))
	r.mu.Unlock()

	if emptied && r.subs != nil {
		r.subs.Unsubscribe(room)
	}
	logging.Debug().Int64("chat_id", room).Uint64("client_id", c.ID()).
		Int("room_size", size).Msg("connection left room")
}

// IndexUser idempotently records the connection under its user id. One
// user may hold several simultaneous connections (multiple tabs).
func (r *Registry) IndexUser(userID int64, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		set = make(map[*Client]struct{})
		r.users[userID] = set
	}
	set[c] = struct{}{}
}

// UnindexUser removes the connection from the user's set, dropping the
// entry when it becomes empty. Safe to call for unindexed connections.
func (r *Registry) UnindexUser(userID int64, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.users, userID)
	}
}

// SnapshotRoom returns a point-in-time copy of the room's connections,
// sorted by client id for consistent iteration order. The snapshot is
// safe to iterate while the registry keeps mutating.
func (r *Registry) SnapshotRoom(room int64) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.rooms[room]
	if !ok {
		return nil
	}
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

// UserConnections returns a point-in-time copy of a user's connections.
func (r *Registry) UserConnections(userID int64) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		return nil
	}
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

// RoomCount returns the number of occupied rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// ConnectionCount returns the number of connections across all rooms.
func (r *Registry) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, set := range r.rooms {
		n += len(set)
	}
	return n
}

// CloseAll closes every registered connection and empties both maps,
// tearing down all broker subscriptions. Used at process shutdown.
// Unsubscribe hooks run after the mutex is released.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	closed := 0
	rooms := make([]int64, 0, len(r.rooms))
	for room, set := range r.rooms {
		for c := range set {
			c.CloseNormal()
			closed++
		}
		delete(r.rooms, room)
		rooms = append(rooms, room)
	}
	r.users = make(map[int64]map[*Client]struct{})

	metrics.ConnectionsActive.Set(0)
	metrics.RoomsActive.Set(0)
	r.mu.Unlock()

	if r.subs != nil {
		for _, room := range rooms {
			r.subs.Unsubscribe(room)
		}
	}
	logging.Info().Int("connections_closed", closed).Msg("registry closed all connections")
}
