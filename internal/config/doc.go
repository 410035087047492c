// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

// Package config loads Relaydesk configuration using Koanf v2 with
// layered sources (highest priority wins):
//
//  1. Environment variables (SERVER_PORT, NATS_URL, RATELIMIT_TIMES, ...)
//  2. Optional YAML config file (config.yaml, or CONFIG_PATH)
//  3. Built-in defaults
//
// The resulting Config struct is validated with go-playground/validator
// before the server starts; invalid configuration fails fast at boot
// rather than surfacing as runtime misbehavior.
package config
