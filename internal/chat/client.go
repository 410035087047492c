// Relaydesk - Realtime Support Chat Relay Service
// Copyright 2026 Relaydesk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaydesk/relaydesk

package chat

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaydesk/relaydesk/internal/directory"
	"github.com/relaydesk/relaydesk/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // 64 KB
	sendBuffer     = 256
)

// clientIDCounter generates unique, monotonically increasing IDs for
// clients so snapshots can be iterated in a consistent order.
var clientIDCounter atomic.Uint64

// SendResult reports the outcome of a non-blocking send attempt. It
// collapses the closed-versus-congested classification into one value
// checked at the call site.
type SendResult struct {
	// OK is true when the payload was queued for delivery.
	OK bool
	// Closed is true when the connection is shut down; a false OK with
	// a false Closed means the send queue was full.
	Closed bool
}

// Client wraps one WebSocket connection together with the room and user
// it serves. It is owned by exactly one session for its lifetime and
// referenced, not owned, by Registry sets.
type Client struct {
	id   uint64
	conn *websocket.Conn
	send chan []byte

	room int64
	user directory.User

	remoteAddr string

	closeOnce   sync.Once
	closed      chan struct{}
	done        chan struct{}
	closeCode   int
	closeReason string
	closeSilent bool
	writerOn    atomic.Bool
}

// NewClient creates a Client for an upgraded connection.
func NewClient(conn *websocket.Conn, room int64, user directory.User) *Client {
	remote := ""
	if conn != nil && conn.RemoteAddr() != nil {
		remote = conn.RemoteAddr().String()
	}
	return &Client{
		id:         clientIDCounter.Add(1),
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		room:       room,
		user:       user,
		remoteAddr: remote,
		closed:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 { return c.id }

// Room returns the conversation id this connection is subscribed to.
func (c *Client) Room() int64 { return c.room }

// User returns the authenticated user behind this connection.
func (c *Client) User() directory.User { return c.user }

// RateLimitKey mixes the network origin with the per-process connection
// identity. Multiple tabs of one user are limited independently, and a
// reconnect gets a fresh window.
func (c *Client) RateLimitKey() string {
	return fmt.Sprintf("%s#%d", c.remoteAddr, c.id)
}

// TrySend queues a payload without blocking.
func (c *Client) TrySend(data []byte) SendResult {
	select {
	case <-c.closed:
		return SendResult{Closed: true}
	default:
	}

	select {
	case c.send <- data:
		return SendResult{OK: true}
	case <-c.closed:
		return SendResult{Closed: true}
	default:
		return SendResult{}
	}
}

// StartWriter launches the write pump. It must be called exactly once.
func (c *Client) StartWriter() {
	c.writerOn.Store(true)
	go c.writePump()
}

// writePump serializes all writes to the connection: queued payloads,
// protocol-level pings, and the final close frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Uint64("client_id", c.id).Msg("failed to set write deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Debug().Err(err).Uint64("client_id", c.id).Msg("write failed, closing client")
				c.markClosed()
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.markClosed()
				return
			}

		case <-c.closed:
			c.flushAndClose()
			return
		}
	}
}

// flushAndClose drains payloads queued before shutdown, then writes the
// close frame chosen by Close. Skipped entirely when the transport
// already failed.
func (c *Client) flushAndClose() {
	if c.closeSilent {
		return
	}
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}

// Close terminates the connection with an application close code. It is
// idempotent; only the first call takes effect. When the write pump is
// running it flushes queued payloads before the close frame; otherwise
// the frame is written here.
func (c *Client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.closed)

		if !c.writerOn.Load() && c.conn != nil {
			msg := websocket.FormatCloseMessage(code, reason)
			if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
				logging.Debug().Err(err).Uint64("client_id", c.id).Msg("failed to write close frame")
			}
			_ = c.conn.Close()
		}
	})
}

// CloseNormal terminates the connection with a normal closure code.
func (c *Client) CloseNormal() {
	c.Close(websocket.CloseNormalClosure, "")
}

// markClosed flags the client as closed without writing a close frame,
// used when the transport already failed.
func (c *Client) markClosed() {
	c.closeOnce.Do(func() {
		c.closeSilent = true
		close(c.closed)
		if !c.writerOn.Load() && c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// IsClosed reports whether the client has been shut down.
func (c *Client) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
