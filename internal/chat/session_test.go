// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package chat

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/relaydesk/relaydesk/internal/directory"
)

// newTestDirectory seeds the fixture users and conversations used
// across session tests.
func newTestDirectory() *directory.StaticDirectory {
	dir := directory.NewStaticDirectory()
	dir.AddUser(directory.User{ID: 10, ExternalID: "cust-10", Name: "Customer Ten", Role: directory.RoleCustomer})
	dir.AddUser(directory.User{ID: 11, ExternalID: "agent-11", Name: "Agent Eleven", Role: directory.RoleAgent})
	dir.AddUser(directory.User{ID: 12, ExternalID: "admin-12", Name: "Admin Twelve", Role: directory.RoleAdmin})
	dir.AddUser(directory.User{ID: 13, ExternalID: "cust-13", Name: "Customer Thirteen", Role: directory.RoleCustomer})
	dir.AddConversation(directory.Conversation{ID: 42, ParticipantIDs: []int64{10, 11}})
	return dir
}

// sessionFixture bundles a Sessions instance with a live test server.
type sessionFixture struct {
	sessions *Sessions
	registry *Registry
	typing   *TypingTracker
	limiter  *RateLimiter
	server   *httptest.Server
}

func newSessionFixture(t *testing.T, limiter *RateLimiter) *sessionFixture {
	t.Helper()

	if limiter == nil {
		limiter = NewRateLimiter(100, 10*time.Second)
	}
	registry := NewRegistry(&fakeSubs{})
	broadcaster := NewBroadcaster(registry, nil)
	dispatcher := NewDispatcher()
	RegisterBuiltins(dispatcher)
	typing := NewTypingTracker()
	sessions := NewSessions(newTestDirectory(), registry, broadcaster, dispatcher, typing, limiter)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		chatID, _ := strconv.ParseInt(r.URL.Query().Get("chat_id"), 10, 64)
		sessions.Run(r.Context(), conn, r.URL.Query().Get("user"), chatID)
	}))
	t.Cleanup(srv.Close)

	return &sessionFixture{
		sessions: sessions,
		registry: registry,
		typing:   typing,
		limiter:  limiter,
		server:   srv,
	}
}

func (f *sessionFixture) dial(t *testing.T, externalID string, chatID int64) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") +
		"/?user=" + externalID + "&chat_id=" + strconv.FormatInt(chatID, 10)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial as %s: %v", externalID, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readJSON reads one frame with a deadline and decodes it.
func readJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
}

// expectClose asserts that the next read fails with the given close code.
func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("read succeeded, want close")
	}
	ce, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("err = %v, want close error with code %d", err, code)
	}
	if ce.Code != code {
		t.Errorf("close code = %d, want %d", ce.Code, code)
	}
}

func TestSession_TypingBroadcast(t *testing.T) {
	f := newSessionFixture(t, nil)

	customer := f.dial(t, "cust-10", 42)
	agent := f.dial(t, "agent-11", 42)

	// Both connections must be registered before the broadcast.
	if !waitFor(t, 2*time.Second, func() bool { return f.registry.ConnectionCount() == 2 }) {
		t.Fatal("connections never registered")
	}

	msg := `{"type":"typing","is_typing":true}`
	if err := customer.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var env struct {
		Event   string      `json:"event"`
		Payload TypingEvent `json:"payload"`
	}
	readJSON(t, agent, &env)
	if env.Event != EventTyping {
		t.Errorf("event = %q, want %q", env.Event, EventTyping)
	}
	if env.Payload.ChatID != 42 || env.Payload.UserID != 10 || !env.Payload.IsTyping {
		t.Errorf("payload = %+v", env.Payload)
	}

	// The sender receives its own event too.
	var echo struct {
		Event string `json:"event"`
	}
	readJSON(t, customer, &echo)
	if echo.Event != EventTyping {
		t.Errorf("sender echo event = %q, want %q", echo.Event, EventTyping)
	}

	if !f.typing.IsTyping(42, 10) {
		t.Error("typing state not recorded")
	}
}

func TestSession_TextMessageBroadcast(t *testing.T) {
	f := newSessionFixture(t, nil)

	customer := f.dial(t, "cust-10", 42)
	agent := f.dial(t, "agent-11", 42)
	if !waitFor(t, 2*time.Second, func() bool { return f.registry.ConnectionCount() == 2 }) {
		t.Fatal("connections never registered")
	}

	msg := `{"type":"text","content":"hello from the customer"}`
	if err := customer.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var env struct {
		Event   string       `json:"event"`
		Payload MessageEvent `json:"payload"`
	}
	readJSON(t, agent, &env)
	if env.Event != EventMessage {
		t.Errorf("event = %q, want %q", env.Event, EventMessage)
	}
	if env.Payload.Content != "hello from the customer" || env.Payload.UserID != 10 {
		t.Errorf("payload = %+v", env.Payload)
	}
}

func TestSession_PingPong(t *testing.T) {
	f := newSessionFixture(t, nil)
	conn := f.dial(t, "cust-10", 42)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}

	var reply struct {
		Type string `json:"type"`
	}
	readJSON(t, conn, &reply)
	if reply.Type != TypePong {
		t.Errorf("reply type = %q, want %q", reply.Type, TypePong)
	}
}

func TestSession_UnknownTypeKeepsConnection(t *testing.T) {
	f := newSessionFixture(t, nil)
	conn := f.dial(t, "cust-10", 42)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"frobnicate"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var env ErrorEnvelope
	readJSON(t, conn, &env)
	if env.Status != "error" {
		t.Errorf("status = %q, want error", env.Status)
	}
	if env.Message != "Unknown message type: frobnicate" {
		t.Errorf("message = %q", env.Message)
	}

	// The connection survives: a valid frame still works.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("write after error: %v", err)
	}
	var reply struct {
		Type string `json:"type"`
	}
	readJSON(t, conn, &reply)
	if reply.Type != TypePong {
		t.Errorf("reply type = %q, want %q", reply.Type, TypePong)
	}
}

func TestSession_RejectsUnknownUser(t *testing.T) {
	f := newSessionFixture(t, nil)
	conn := f.dial(t, "nobody", 42)
	expectClose(t, conn, CloseAuthFailure)
}

func TestSession_RejectsUnknownConversation(t *testing.T) {
	f := newSessionFixture(t, nil)
	conn := f.dial(t, "cust-10", 999)
	expectClose(t, conn, CloseNotFound)
}

func TestSession_RejectsNonParticipant(t *testing.T) {
	f := newSessionFixture(t, nil)
	conn := f.dial(t, "cust-13", 42)
	expectClose(t, conn, CloseForbidden)
}

func TestSession_AdminJoinsAnyConversation(t *testing.T) {
	f := newSessionFixture(t, nil)

	admin := f.dial(t, "admin-12", 42)
	if !waitFor(t, 2*time.Second, func() bool { return f.registry.ConnectionCount() == 1 }) {
		t.Fatal("admin connection never registered")
	}

	if err := admin.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply struct {
		Type string `json:"type"`
	}
	readJSON(t, admin, &reply)
	if reply.Type != TypePong {
		t.Errorf("reply type = %q, want %q", reply.Type, TypePong)
	}
}

func TestSession_RateLimitCloses(t *testing.T) {
	f := newSessionFixture(t, NewRateLimiter(2, 10*time.Second))
	conn := f.dial(t, "cust-10", 42)

	for i := 0; i < 3; i++ {
		msg := `{"type":"text","content":"spam"}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	// Reads: two broadcast events, then the error envelope, then the
	// close frame with the rate limit code.
	sawError := false
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			ce, ok := err.(*websocket.CloseError)
			if !ok {
				t.Fatalf("read: %v", err)
			}
			if ce.Code != CloseRateLimited {
				t.Errorf("close code = %d, want %d", ce.Code, CloseRateLimited)
			}
			break
		}
		var env ErrorEnvelope
		if json.Unmarshal(data, &env) == nil && env.Status == "error" {
			if env.Message != "Rate limit exceeded" {
				t.Errorf("error message = %q", env.Message)
			}
			sawError = true
		}
	}
	if !sawError {
		t.Error("rate limit error envelope never arrived")
	}
}

func TestSession_DisconnectCleansUp(t *testing.T) {
	f := newSessionFixture(t, nil)

	conn := f.dial(t, "cust-10", 42)
	if !waitFor(t, 2*time.Second, func() bool { return f.registry.ConnectionCount() == 1 }) {
		t.Fatal("connection never registered")
	}

	// Leave a typing entry behind, then drop the connection.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"typing","is_typing":true}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return f.typing.IsTyping(42, 10) }) {
		t.Fatal("typing state never recorded")
	}

	conn.Close()

	if !waitFor(t, 2*time.Second, func() bool { return f.registry.ConnectionCount() == 0 }) {
		t.Error("registry not cleaned up after disconnect")
	}
	if !waitFor(t, 2*time.Second, func() bool { return !f.typing.IsTyping(42, 10) }) {
		t.Error("typing state not cleared after disconnect")
	}
	if !waitFor(t, 2*time.Second, func() bool { return f.registry.UserConnections(10) == nil }) {
		t.Error("user index not cleaned up after disconnect")
	}
}
