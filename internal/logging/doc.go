// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

// Package logging provides centralized zerolog-based logging for Relaydesk.
//
// All packages log through the global logger configured here, giving a
// single place to control level, format, and output:
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Int64("chat_id", chatID).Msg("room opened")
//	logging.Error().Err(err).Msg("broker publish failed")
//
// # Configuration
//
// Level accepts trace, debug, info, warn, error, fatal, panic, disabled.
// Format is "json" for production or "console" for development.
//
// # slog interoperability
//
// Libraries that speak log/slog (the suture supervisor via sutureslog)
// are bridged through SlogHandler so their output lands in the same
// zerolog stream:
//
//	slogger := logging.NewSlogLogger()
//	hook := (&sutureslog.Handler{Logger: slogger}).MustHook()
//
// # Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
package logging
