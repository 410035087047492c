// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package directory

import (
	"context"
	"errors"
)

// Role identifies what a user may do inside a conversation.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
)

// ReadAll reports whether the role may join any conversation without
// being a participant of record.
func (r Role) ReadAll() bool {
	return r == RoleAdmin
}

// User is an identity record resolved from an external user identifier.
type User struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
}

// Conversation is a support-chat conversation record. ParticipantIDs
// are the internal user ids allowed to join its room.
type Conversation struct {
	ID             int64   `json:"id"`
	ParticipantIDs []int64 `json:"participant_ids"`
}

// HasParticipant reports whether the user id is a participant of record.
func (c *Conversation) HasParticipant(userID int64) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ErrNotFound is returned when a user or conversation does not exist.
var ErrNotFound = errors.New("directory: not found")

// Directory resolves users and conversations. Implementations must be
// safe for concurrent use.
type Directory interface {
	// ResolveUserByExternalID looks up a user by the external identifier
	// presented at connection time. Returns ErrNotFound if unknown.
	ResolveUserByExternalID(ctx context.Context, externalID string) (*User, error)

	// ResolveConversation looks up a conversation by id.
	// Returns ErrNotFound if unknown.
	ResolveConversation(ctx context.Context, id int64) (*Conversation, error)
}
