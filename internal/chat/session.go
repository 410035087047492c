// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaydesk/relaydesk/internal/directory"
	"github.com/relaydesk/relaydesk/internal/logging"
	"github.com/relaydesk/relaydesk/internal/metrics"
)

// Sessions owns the lifecycle of every chat connection: admission
// against the directory, registration, the receive loop, and ordered
// teardown. One Sessions instance serves the whole process.
type Sessions struct {
	directory   directory.Directory
	registry    *Registry
	broadcaster *Broadcaster
	dispatcher  *Dispatcher
	typing      *TypingTracker
	limiter     *RateLimiter
}

// NewSessions wires the session orchestrator to its collaborators.
func NewSessions(dir directory.Directory, reg *Registry, bc *Broadcaster, d *Dispatcher, typing *TypingTracker, limiter *RateLimiter) *Sessions {
	return &Sessions{
		directory:   dir,
		registry:    reg,
		broadcaster: bc,
		dispatcher:  d,
		typing:      typing,
		limiter:     limiter,
	}
}

// reject closes an unadmitted connection with an application close code
// before any Client exists for it.
func reject(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}

// Run admits an upgraded connection and serves it until it disconnects
// or is terminated. It blocks for the lifetime of the connection, so
// callers invoke it from the HTTP handler goroutine.
//
// Admission resolves the external user id and the conversation through
// the directory and checks membership; each failure closes the socket
// with a distinct application close code.
func (s *Sessions) Run(ctx context.Context, conn *websocket.Conn, externalID string, chatID int64) {
	user, err := s.directory.ResolveUserByExternalID(ctx, externalID)
	if err != nil {
		metrics.ConnectionsTotal.WithLabelValues("auth_failure").Inc()
		logging.Warn().Err(err).Str("external_id", externalID).Msg("rejecting connection, user resolution failed")
		reject(conn, CloseAuthFailure, "authentication failed")
		return
	}

	conv, err := s.directory.ResolveConversation(ctx, chatID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			metrics.ConnectionsTotal.WithLabelValues("not_found").Inc()
			logging.Warn().Int64("chat_id", chatID).Int64("user_id", user.ID).Msg("rejecting connection, conversation not found")
			reject(conn, CloseNotFound, "conversation not found")
			return
		}
		metrics.ConnectionsTotal.WithLabelValues("directory_error").Inc()
		logging.Error().Err(err).Int64("chat_id", chatID).Msg("rejecting connection, directory lookup failed")
		reject(conn, websocket.CloseInternalServerErr, "directory unavailable")
		return
	}

	if !conv.HasParticipant(user.ID) && !user.Role.ReadAll() {
		metrics.ConnectionsTotal.WithLabelValues("forbidden").Inc()
		logging.Warn().Int64("chat_id", chatID).Int64("user_id", user.ID).
			Str("role", string(user.Role)).Msg("rejecting connection, user is not a participant")
		reject(conn, CloseForbidden, "not a participant in this conversation")
		return
	}

	c := NewClient(conn, chatID, *user)
	c.StartWriter()
	s.registry.Join(chatID, c)
	s.registry.IndexUser(user.ID, c)
	metrics.ConnectionsTotal.WithLabelValues("accepted").Inc()

	logging.Info().Uint64("client_id", c.ID()).Int64("chat_id", chatID).
		Int64("user_id", user.ID).Str("role", string(user.Role)).Msg("chat connection established")

	defer func() {
		s.typing.ClearUser(chatID, user.ID)
		s.registry.Leave(chatID, c)
		s.registry.UnindexUser(user.ID, c)
		s.limiter.Forget(c.RateLimitKey())
		c.CloseNormal()
		logging.Info().Uint64("client_id", c.ID()).Int64("chat_id", chatID).
			Int64("user_id", user.ID).Msg("chat connection closed")
	}()

	s.readLoop(ctx, c)
}

// readLoop consumes inbound frames until the connection drops or a
// terminal condition closes it.
func (s *Sessions) readLoop(ctx context.Context, c *Client) {
	conn := c.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	key := c.RateLimitKey()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug().Err(err).Uint64("client_id", c.ID()).Msg("connection read failed")
			}
			return
		}

		if !s.limiter.Allow(key) {
			metrics.RateLimited.Inc()
			logging.Warn().Uint64("client_id", c.ID()).Int64("user_id", c.User().ID).
				Msg("closing connection, message rate limit exceeded")
			s.broadcaster.SendError(c, "Rate limit exceeded")
			c.Close(CloseRateLimited, "rate limit exceeded")
			return
		}

		msgType, raw := ParseFrame(data)
		if msgType == TypePing {
			c.TrySend(pongFrame)
			continue
		}

		mc := &MessageContext{
			Ctx:         ctx,
			Client:      c,
			Room:        c.Room(),
			User:        c.User(),
			Type:        msgType,
			Raw:         raw,
			Broadcaster: s.broadcaster,
			Typing:      s.typing,
		}
		if err := s.dispatcher.Dispatch(mc); err != nil {
			if errors.Is(err, ErrUnknownType) {
				s.broadcaster.SendError(c, fmt.Sprintf("Unknown message type: %s", msgType))
			} else {
				s.broadcaster.SendError(c, err.Error())
			}
		}
	}
}
