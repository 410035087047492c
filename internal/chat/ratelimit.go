// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package chat

import (
	"sync"
	"time"
)

// sweepInterval bounds how often the limiter walks its whole key map to
// drop idle entries. Connection churn would otherwise grow the map
// without bound.
const sweepInterval = time.Minute

// RateLimiter maintains a sliding window of event timestamps per
// connection key. Allow prunes the caller's own window lazily; a full
// sweep across keys runs opportunistically at most once per
// sweepInterval.
type RateLimiter struct {
	mu        sync.Mutex
	times     int
	window    time.Duration
	hits      map[string][]time.Time
	lastSweep time.Time

	// now is the clock, injectable for tests.
	now func() time.Time
}

// NewRateLimiter allows up to times events per window per key.
func NewRateLimiter(times int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		times:  times,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records one event for the key if the key is under its limit and
// reports whether the event was admitted. A rejected event is not
// recorded, so a client pinned at the limit is readmitted as soon as
// old events age out.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.maybeSweep(now)

	window := rl.hits[key]
	cutoff := now.Add(-rl.window)
	live := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}

	if len(live) >= rl.times {
		rl.hits[key] = live
		return false
	}

	rl.hits[key] = append(live, now)
	return true
}

// Forget drops the key's window outright, used when its connection is
// torn down.
func (rl *RateLimiter) Forget(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.hits, key)
}

// maybeSweep drops keys whose windows are entirely stale. Must be
// called with mu held.
func (rl *RateLimiter) maybeSweep(now time.Time) {
	if now.Sub(rl.lastSweep) < sweepInterval {
		return
	}
	rl.lastSweep = now

	cutoff := now.Add(-rl.window)
	for key, window := range rl.hits {
		stale := true
		for _, ts := range window {
			if ts.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(rl.hits, key)
		}
	}
}

// size returns the number of tracked keys, for tests.
func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.hits)
}
