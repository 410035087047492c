// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/relaydesk/relaydesk/internal/chat"
	"github.com/relaydesk/relaydesk/internal/config"
	"github.com/relaydesk/relaydesk/internal/directory"
)

// noopSubs satisfies chat.SubscriptionManager for local-only fixtures.
type noopSubs struct{}

func (noopSubs) Subscribe(int64)   {}
func (noopSubs) Unsubscribe(int64) {}

type fixture struct {
	handler  *Handler
	registry *chat.Registry
	typing   *chat.TypingTracker
	server   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Server.CORSOrigins = []string{"*"}

	dir := directory.NewStaticDirectory()
	dir.AddUser(directory.User{ID: 10, ExternalID: "cust-10", Role: directory.RoleCustomer})
	dir.AddUser(directory.User{ID: 11, ExternalID: "agent-11", Role: directory.RoleAgent})
	dir.AddConversation(directory.Conversation{ID: 42, ParticipantIDs: []int64{10, 11}})

	registry := chat.NewRegistry(noopSubs{})
	broadcaster := chat.NewBroadcaster(registry, nil)
	dispatcher := chat.NewDispatcher()
	chat.RegisterBuiltins(dispatcher)
	typing := chat.NewTypingTracker()
	limiter := chat.NewRateLimiter(100, 10*time.Second)
	sessions := chat.NewSessions(dir, registry, broadcaster, dispatcher, typing, limiter)

	handler := NewHandler(cfg, sessions, registry, broadcaster, typing, nil)
	srv := httptest.NewServer(NewRouter(handler).Setup())
	t.Cleanup(srv.Close)

	return &fixture{handler: handler, registry: registry, typing: typing, server: srv}
}

func getJSON(t *testing.T, url string) (int, APIResponse) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var body APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return resp.StatusCode, body
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	code, body := getJSON(t, f.server.URL+"/api/v1/health/live")
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("live: code=%d status=%q", code, body.Status)
	}

	code, body = getJSON(t, f.server.URL+"/api/v1/health/ready")
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("ready: code=%d status=%q", code, body.Status)
	}
	data, _ := body.Data.(map[string]interface{})
	if data["bridge"] != "disabled" {
		t.Errorf("bridge state = %v, want disabled", data["bridge"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)

	code, body := getJSON(t, f.server.URL+"/api/v1/status")
	if code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	data, ok := body.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data = %T", body.Data)
	}
	if data["rooms"] != float64(0) || data["connections"] != float64(0) {
		t.Errorf("counts = %v, want zeros", data)
	}
}

func TestEmitEvent(t *testing.T) {
	f := newFixture(t)

	body := `{"event":"message","payload":{"chat_id":42,"user_id":0,"content":"from the backend"}}`
	resp, err := http.Post(f.server.URL+"/api/v1/rooms/42/events", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("code = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
}

func TestEmitEvent_Invalid(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"missing event name", "/api/v1/rooms/42/events", `{"payload":{}}`},
		{"malformed body", "/api/v1/rooms/42/events", `not json`},
		{"bad room id", "/api/v1/rooms/abc/events", `{"event":"message"}`},
		{"negative room id", "/api/v1/rooms/-1/events", `{"event":"message"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(f.server.URL+tt.path, "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("code = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestRoomTyping(t *testing.T) {
	f := newFixture(t)

	f.typing.Set(42, 10, true)

	code, body := getJSON(t, f.server.URL+"/api/v1/rooms/42/typing")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	data, _ := body.Data.(map[string]interface{})
	users, _ := data["typing"].([]interface{})
	if len(users) != 1 || users[0] != float64(10) {
		t.Errorf("typing = %v, want [10]", users)
	}

	// Empty rooms report an empty list, not null.
	_, body = getJSON(t, f.server.URL+"/api/v1/rooms/7/typing")
	data, _ = body.Data.(map[string]interface{})
	if users, ok := data["typing"].([]interface{}); !ok || len(users) != 0 {
		t.Errorf("typing for empty room = %v, want []", data["typing"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("code = %d", resp.StatusCode)
	}
}
