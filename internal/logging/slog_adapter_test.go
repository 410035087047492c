// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSlogHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(zerolog.New(&buf))
	logger := slog.New(handler)

	logger.Info("test message", "key", "value", "count", 42)

	out := buf.String()
	for _, want := range []string{"test message", `"key":"value"`, `"count":42`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestSlogHandler_Levels(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, `"level":"debug"`},
		{slog.LevelInfo, `"level":"info"`},
		{slog.LevelWarn, `"level":"warn"`},
		{slog.LevelError, `"level":"error"`},
	}

	// Package init sets the zerolog global level to info; lift it so the
	// per-logger trace level below is what actually filters events.
	old := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	defer zerolog.SetGlobalLevel(old)

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			handler := NewSlogHandlerWithLogger(zerolog.New(&buf).Level(zerolog.TraceLevel))
			logger := slog.New(handler)

			logger.Log(context.Background(), tt.level, "msg")

			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %s: %s", tt.want, buf.String())
			}
		})
	}
}

func TestSlogHandler_Enabled(t *testing.T) {
	handler := NewSlogHandlerWithLogger(zerolog.New(io.Discard).Level(zerolog.WarnLevel))

	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info enabled on warn-level logger")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("error disabled on warn-level logger")
	}
}

func TestSlogHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(zerolog.New(&buf))
	logger := slog.New(handler).With("service", "bridge")

	logger.Info("attributed")

	if !strings.Contains(buf.String(), `"service":"bridge"`) {
		t.Errorf("pre-configured attr missing: %s", buf.String())
	}
}

func TestSlogHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(zerolog.New(&buf))
	logger := slog.New(handler).WithGroup("nats")

	logger.Info("grouped", "subject", "chat.room.1")

	if !strings.Contains(buf.String(), `"nats.subject":"chat.room.1"`) {
		t.Errorf("group prefix missing: %s", buf.String())
	}
}

func TestNewSlogLogger(t *testing.T) {
	if NewSlogLogger() == nil {
		t.Fatal("NewSlogLogger returned nil")
	}
}
