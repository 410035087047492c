// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/relaydesk/relaydesk/internal/logging"
	"github.com/relaydesk/relaydesk/internal/metrics"
)

// prometheusMetrics records request counts and latency per route
// pattern. The Chi route pattern keeps metric cardinality bounded; raw
// paths would explode it with every distinct room id.
func prometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.RecordHTTPRequest(r.Method, pattern, ww.Status(), time.Since(start))
	})
}

// requestLogging emits one structured log line per request.
func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
