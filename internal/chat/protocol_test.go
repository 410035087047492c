// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package chat

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType string
		wantRaw  string
	}{
		{
			name:     "typed object passes through",
			input:    `{"type":"typing","is_typing":true}`,
			wantType: "typing",
			wantRaw:  `{"type":"typing","is_typing":true}`,
		},
		{
			name:     "text object passes through",
			input:    `{"type":"text","content":"hello"}`,
			wantType: "text",
			wantRaw:  `{"type":"text","content":"hello"}`,
		},
		{
			name:     "bare ping literal",
			input:    `ping`,
			wantType: "ping",
		},
		{
			name:     "quoted ping",
			input:    `"ping"`,
			wantType: "ping",
		},
		{
			name:     "object without type becomes text",
			input:    `{"content":"hi"}`,
			wantType: "text",
		},
		{
			name:     "plain string becomes text",
			input:    `just words`,
			wantType: "text",
		},
		{
			name:     "empty frame becomes text",
			input:    ``,
			wantType: "text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotRaw := ParseFrame([]byte(tt.input))
			if gotType != tt.wantType {
				t.Errorf("ParseFrame type = %q, want %q", gotType, tt.wantType)
			}
			if tt.wantRaw != "" && string(gotRaw) != tt.wantRaw {
				t.Errorf("ParseFrame raw = %s, want %s", gotRaw, tt.wantRaw)
			}
		})
	}
}

func TestParseFrame_WrappedTextDecodes(t *testing.T) {
	msgType, raw := ParseFrame([]byte("hello there"))
	if msgType != TypeText {
		t.Fatalf("type = %q, want %q", msgType, TypeText)
	}

	var frame textFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("wrapped frame does not decode: %v", err)
	}
	if frame.Content != "hello there" {
		t.Errorf("content = %q, want %q", frame.Content, "hello there")
	}
}

func TestNewErrorEnvelope(t *testing.T) {
	env := NewErrorEnvelope("something broke")
	if env.Status != "error" {
		t.Errorf("status = %q, want %q", env.Status, "error")
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"status":"error","message":"something broke"}`
	if string(data) != want {
		t.Errorf("envelope = %s, want %s", data, want)
	}
}
