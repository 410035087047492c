// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/relaydesk/relaydesk/internal/logging"
)

// APIResponse is the uniform REST response envelope. Status is "ok" or
// "error"; Message is set only on errors.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(APIResponse{Status: "ok", Data: data}); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(APIResponse{Status: "error", Message: msg}); err != nil {
		logging.Error().Err(err).Msg("failed to encode error response")
	}
}
