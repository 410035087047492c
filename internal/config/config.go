// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Relaydesk server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	NATS      NATSConfig      `koanf:"nats"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Directory DirectoryConfig `koanf:"directory"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds the HTTP/WebSocket server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"         validate:"min=1,max=65535"`
	Timeout     time.Duration `koanf:"timeout"      validate:"min=1s"`
	CORSOrigins []string      `koanf:"cors_origins" validate:"min=1"`
}

// NATSConfig holds pub/sub broker settings. When Enabled is false the
// service runs in local-only mode and never touches a broker. When
// Embedded is true an in-process nats-server is started and URL is
// ignored.
type NATSConfig struct {
	Enabled      bool   `koanf:"enabled"`
	URL          string `koanf:"url"           validate:"required_if=Enabled true"`
	Embedded     bool   `koanf:"embedded"`
	EmbeddedPort int    `koanf:"embedded_port" validate:"min=0,max=65535"`
	StoreDir     string `koanf:"store_dir"`
}

// RateLimitConfig bounds how many inbound frames a single connection may
// send inside a sliding window.
type RateLimitConfig struct {
	Times   int `koanf:"times"   validate:"min=1"`
	Seconds int `koanf:"seconds" validate:"min=1"`
}

// Window returns the sliding window as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.Seconds) * time.Second
}

// DirectoryConfig selects how user and conversation records are
// resolved. "http" talks to the business backend's REST API; "static"
// serves fixtures and exists for development and tests.
type DirectoryConfig struct {
	Mode    string        `koanf:"mode"     validate:"oneof=http static"`
	BaseURL string        `koanf:"base_url" validate:"required_if=Mode http,omitempty,url"`
	Timeout time.Duration `koanf:"timeout"  validate:"min=100ms"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"  validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Default returns a Config with all default values applied. Defaults
// are layered first, then overridden by the config file and env vars.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8980,
			Timeout:     30 * time.Second,
			CORSOrigins: []string{"*"},
		},
		NATS: NATSConfig{
			Enabled:      false,
			URL:          "nats://127.0.0.1:4222",
			Embedded:     false,
			EmbeddedPort: 4222,
			StoreDir:     "",
		},
		RateLimit: RateLimitConfig{
			Times:   10,
			Seconds: 10,
		},
		Directory: DirectoryConfig{
			Mode:    "static",
			BaseURL: "",
			Timeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
