// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8980 {
		t.Errorf("Server.Port = %d, want 8980", cfg.Server.Port)
	}
	if cfg.RateLimit.Times != 10 || cfg.RateLimit.Seconds != 10 {
		t.Errorf("RateLimit = %d/%ds, want 10/10s", cfg.RateLimit.Times, cfg.RateLimit.Seconds)
	}
	if cfg.NATS.Enabled {
		t.Error("NATS enabled by default; local-only must be the default mode")
	}
	if cfg.Directory.Mode != "static" {
		t.Errorf("Directory.Mode = %q, want static", cfg.Directory.Mode)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"zero rate limit times", func(c *Config) { c.RateLimit.Times = 0 }},
		{"zero rate limit seconds", func(c *Config) { c.RateLimit.Seconds = 0 }},
		{"unknown directory mode", func(c *Config) { c.Directory.Mode = "ldap" }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"no cors origins", func(c *Config) { c.Server.CORSOrigins = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid config")
			}
		})
	}
}

func TestRateLimitWindow(t *testing.T) {
	cfg := RateLimitConfig{Times: 3, Seconds: 10}
	if got := cfg.Window(); got != 10*time.Second {
		t.Errorf("Window() = %v, want 10s", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8980 {
		t.Errorf("Server.Port = %d, want default 8980", cfg.Server.Port)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9001")
	t.Setenv("RATELIMIT_TIMES", "3")
	t.Setenv("NATS_URL", "nats://broker:4222")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("Server.Port = %d, want 9001", cfg.Server.Port)
	}
	if cfg.RateLimit.Times != 3 {
		t.Errorf("RateLimit.Times = %d, want 3", cfg.RateLimit.Times)
	}
	if cfg.NATS.URL != "nats://broker:4222" {
		t.Errorf("NATS.URL = %q, want nats://broker:4222", cfg.NATS.URL)
	}
}

func TestLoad_CORSOriginsFromEnv(t *testing.T) {
	t.Setenv("SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("server:\n  port: 9100\nratelimit:\n  times: 5\n  seconds: 60\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100 from file", cfg.Server.Port)
	}
	if cfg.RateLimit.Seconds != 60 {
		t.Errorf("RateLimit.Seconds = %d, want 60 from file", cfg.RateLimit.Seconds)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("SERVER_PORT", "9200")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("Server.Port = %d, want env override 9200", cfg.Server.Port)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"SERVER_PORT", "server.port"},
		{"NATS_URL", "nats.url"},
		{"RATELIMIT_TIMES", "ratelimit.times"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.key); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
