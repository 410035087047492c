// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/relaydesk/relaydesk/internal/chat"
	"github.com/relaydesk/relaydesk/internal/config"
	"github.com/relaydesk/relaydesk/internal/logging"
)

// Handler carries the collaborators every endpoint needs.
type Handler struct {
	cfg         *config.Config
	sessions    *chat.Sessions
	registry    *chat.Registry
	broadcaster *chat.Broadcaster
	typing      *chat.TypingTracker
	bridge      chat.BridgePublisher
	validate    *validator.Validate
}

// NewHandler wires the REST and WebSocket handlers. bridge may be nil
// in local-only deployments.
func NewHandler(cfg *config.Config, sessions *chat.Sessions, registry *chat.Registry, broadcaster *chat.Broadcaster, typing *chat.TypingTracker, bridge chat.BridgePublisher) *Handler {
	return &Handler{
		cfg:         cfg,
		sessions:    sessions,
		registry:    registry,
		broadcaster: broadcaster,
		typing:      typing,
		bridge:      bridge,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"state": "alive"})
}

// HealthReady reports readiness. The relay serves traffic even when the
// bridge is down, so readiness never depends on the broker; the bridge
// state is reported for operators.
func (h *Handler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	bridgeState := "disabled"
	if h.bridge != nil {
		if h.bridge.Enabled() {
			bridgeState = "connected"
		} else {
			bridgeState = "disconnected"
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"state":  "ready",
		"bridge": bridgeState,
	})
}

// Status reports registry occupancy for operators.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rooms":       h.registry.RoomCount(),
		"connections": h.registry.ConnectionCount(),
	})
}

// emitRequest is the body of POST /rooms/{roomID}/events.
type emitRequest struct {
	Event   string          `json:"event" validate:"required,min=1,max=64"`
	Payload json.RawMessage `json:"payload"`
}

// EmitEvent pushes a server-originated event into a room, locally and
// across instances. Services call this when something happens outside a
// chat connection, e.g. a message created over REST.
func (h *Handler) EmitEvent(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(chi.URLParam(r, "roomID"), 10, 64)
	if err != nil || roomID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid room id")
		return
	}

	var req emitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "event name is required")
		return
	}

	var payload interface{}
	if len(req.Payload) > 0 {
		payload = req.Payload
	}
	if err := h.broadcaster.Emit(roomID, req.Event, payload); err != nil {
		logging.Error().Err(err).Int64("chat_id", roomID).Str("event", req.Event).Msg("emit failed")
		respondError(w, http.StatusInternalServerError, "failed to emit event")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"chat_id": roomID,
		"event":   req.Event,
	})
}

// RoomTyping lists the users currently typing in a room.
func (h *Handler) RoomTyping(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.ParseInt(chi.URLParam(r, "roomID"), 10, 64)
	if err != nil || roomID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid room id")
		return
	}

	users := h.typing.ActiveUsers(roomID)
	if users == nil {
		users = []int64{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"chat_id": roomID,
		"typing":  users,
	})
}
