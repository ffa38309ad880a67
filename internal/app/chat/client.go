/*
Package chat is the relay core: it maps connections to identities, routes broadcast,
direct and voice-presence events, enforces moderation and keeps the rolling history.

This file defines the Client, one live WebSocket connection with its read and write loops.
*/
package chat

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxFrameSize = 16384

	// capacity of the per-client outbound queue.
	sendBufferSize = 256

	// sustained inbound events per second and burst allowed per connection.
	eventRate  = 10
	eventBurst = 20
)

// Client represents an active WebSocket connection.
type Client struct {
	// id is the transport-assigned connection identifier.
	id string

	// underlying WebSocket connection object.
	conn *websocket.Conn

	hub     *Hub
	handler EventHandler

	// limiter throttles inbound events.
	limiter *rate.Limiter

	// a buffered channel used to queue frames waiting to be written.
	send chan []byte

	// mu guards closed so that no frame is queued after send is closed.
	mu     sync.Mutex
	closed bool

	logger zerolog.Logger
}

// NewClient constructs a client for an upgraded connection.
func NewClient(id string, conn *websocket.Conn, hub *Hub, handler EventHandler) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		hub:     hub,
		handler: handler,
		limiter: rate.NewLimiter(rate.Limit(eventRate), eventBurst),
		send:    make(chan []byte, sendBufferSize),
		logger:  logx.Logger().With().Str("conn_id", id).Logger(),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string {
	return c.id
}

func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Close stops the write loop after any queued frames; it then sends a close frame.
func (c *Client) Close() {
	c.closeSend()
}

// ReadPump reads frames until the connection fails, handing each decoded event to the
// handler. On exit it unregisters from the hub and reports the disconnect.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInboundFrame(frame)
	}
}

func (c *Client) processInboundFrame(frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Type == "" {
		c.logger.Warn().Err(err).Int("frame_len", len(frame)).Msg("Client sent invalid envelope")
		return
	}

	if !c.limiter.Allow() {
		c.hub.PublishToOne(c.id, EventError, errs.NewError(errs.ErrRateLimitExceeded))
		return
	}

	c.handler.HandleEvent(c.id, env.Type, env.Payload)
}

// cleanupOnDisconnect handles the necessary cleanup steps when ReadPump terminates.
func (c *Client) cleanupOnDisconnect() {
	c.hub.Unregister(c)
	c.handler.Disconnect(c.id)

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// WritePump drains the send queue onto the socket and keeps the heartbeat going.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit so ReadPump unblocks
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

// writeQueuedFrame returns true if the WritePump loop should continue.
func (c *Client) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "connection terminated")
		if err := c.conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Info().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Info().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
