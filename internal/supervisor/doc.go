// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

// Package supervisor builds the suture supervision tree. Two child
// supervisors isolate failures: a bridge crash or broker outage is
// retried with backoff in the messaging layer while the api layer keeps
// serving local traffic.
package supervisor
