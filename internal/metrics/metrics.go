// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Current number of open WebSocket connections",
		},
	)

	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_rooms_active",
			Help: "Current number of rooms with at least one connection",
		},
	)

	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_connections_total",
			Help: "Total number of WebSocket connection attempts by outcome",
		},
		[]string{"outcome"}, // "accepted", "auth_failure", "not_found", "forbidden"
	)

	// Fan-out metrics
	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_delivered_total",
			Help: "Total number of per-connection event deliveries",
		},
		[]string{"event"},
	)

	DeliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_delivery_failures_total",
			Help: "Total number of per-connection send failures during fan-out",
		},
	)

	// Rate limiting
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_rate_limited_total",
			Help: "Total number of connections closed for exceeding the message rate limit",
		},
	)

	// PubSub bridge metrics
	BridgePublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_bridge_published_total",
			Help: "Total number of messages published to the pub/sub broker",
		},
	)

	BridgeRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_bridge_relayed_total",
			Help: "Total number of broker messages relayed into the local broadcaster",
		},
	)

	BridgeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_bridge_errors_total",
			Help: "Total number of pub/sub bridge errors",
		},
		[]string{"op"}, // "connect", "publish", "subscribe", "receive"
	)

	BridgeSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_bridge_subscriptions",
			Help: "Current number of active per-room broker subscriptions",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordHTTPRequest records an HTTP request with its result and duration.
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordDelivery records n successful per-connection deliveries of the named event.
func RecordDelivery(event string, n int) {
	if n > 0 {
		EventsDelivered.WithLabelValues(event).Add(float64(n))
	}
}
