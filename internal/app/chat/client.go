/*
Package chat contains the connection-event state machine of the relay.

This file defines the Client, the WebSocket implementation of Peer. Each Client
runs a read pump, which hands frames to the Relay one at a time, and a write
pump, which is the only goroutine that writes to the socket.
*/
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"relaychat/internal/app/presence"
	"relaychat/internal/app/user"
	"relaychat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client. It fits
	// MaxContentBytes of content with every byte escaped as \u00XX.
	maxMessageSize = 6*MaxContentBytes + 1024

	// number of outbound frames buffered per connection.
	sendBufferSize = 256
)

// Client is one WebSocket connection.
type Client struct {
	id    presence.ConnID
	conn  *websocket.Conn
	relay *Relay

	// authIdentity is empty for anonymous connections.
	authIdentity user.Identity

	// send queues outbound frames for the write pump. It is closed by Close.
	send chan []byte

	// mu guards closed and the close frame fields.
	mu          sync.Mutex
	closed      bool
	closeCode   int
	closeReason string

	logger zerolog.Logger
}

// NewClient wraps an upgraded connection. authIdentity may be empty.
func NewClient(relay *Relay, wsConn *websocket.Conn, authIdentity user.Identity) *Client {
	id := presence.ConnID(uuid.NewString())

	return &Client{
		id:           id,
		conn:         wsConn,
		relay:        relay,
		authIdentity: authIdentity,
		send:         make(chan []byte, sendBufferSize),
		logger: logx.Logger().With().
			Str("component", "ws").
			Str("conn_id", string(id)).
			Logger(),
	}
}

// Serve connects the client to the relay and starts both pumps. It returns
// immediately; ctx bounds the handling of every inbound event.
func (c *Client) Serve(ctx context.Context) error {
	if err := c.relay.Connect(c); err != nil {
		c.writeClose(websocket.CloseTryAgainLater, "server is shutting down")
		_ = c.conn.Close()
		return err
	}

	go c.WritePump()
	go c.ReadPump(ctx)

	return nil
}

// ID implements Peer.
func (c *Client) ID() presence.ConnID {
	return c.id
}

// AuthIdentity implements Peer.
func (c *Client) AuthIdentity() (user.Identity, bool) {
	return c.authIdentity, c.authIdentity != ""
}

// Deliver implements Peer.
func (c *Client) Deliver(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping frame")
		return false
	}
}

// Close implements Peer. The write pump flushes queued frames, then sends the close frame.
func (c *Client) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
}

// ReadPump reads frames until the connection fails, then disconnects the client from the relay.
func (c *Client) ReadPump(ctx context.Context) {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			return
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn().Int("message_type", messageType).Msg("Client sent non-text frame, ignoring")
			continue
		}

		// Errors are already reported to the client as error frames.
		_ = c.relay.HandleFrame(ctx, c, data)
	}
}

func (c *Client) cleanupOnDisconnect() {
	c.relay.Disconnect(c)
	c.Close(websocket.CloseNormalClosure, "")

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				c.mu.Lock()
				code, reason := c.closeCode, c.closeReason
				c.mu.Unlock()

				c.writeClose(code, reason)
				return
			}

			if !c.writeFrame(websocket.TextMessage, frame) {
				return
			}

		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// writeFrame reports whether the write pump should continue.
func (c *Client) writeFrame(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Int("message_type", messageType).Msg("Error writing frame")
		return false
	}

	return true
}

func (c *Client) writeClose(code int, reason string) {
	if code == 0 {
		code = websocket.CloseNormalClosure
	}

	c.logger.Debug().Int("close_code", code).Str("reason", reason).Msg("Sending close frame")

	message := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to send close frame")
	}
}
