// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaydesk/relaydesk/internal/logging"
)

// getUpgrader builds the WebSocket upgrader with origin checking and a
// handshake timeout against slow clients.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkOrigin validates browser origins against the configured list.
// Requests without an Origin header come from non-browser clients and
// are admitted; the directory still authenticates them.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("websocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the connection and hands it to the session
// orchestrator, which owns it from admission to teardown. Identity
// comes from the user query parameter and is verified against the
// directory; the chat_id parameter names the conversation to join.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	externalID := r.URL.Query().Get("user")
	if externalID == "" {
		respondError(w, http.StatusBadRequest, "user parameter is required")
		return
	}
	chatID, err := strconv.ParseInt(r.URL.Query().Get("chat_id"), 10, 64)
	if err != nil || chatID <= 0 {
		respondError(w, http.StatusBadRequest, "chat_id parameter is required")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.sessions.Run(r.Context(), conn, externalID, chatID)
}
