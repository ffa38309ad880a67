package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"chatrelay/internal/pkg/logx"
)

// Hub tracks the live clients and implements Transport over their send queues.
type Hub struct {
	// clients maps connection IDs to live clients.
	clients map[string]*Client

	// mu protects clients.
	mu sync.RWMutex

	logger zerolog.Logger
}

var _ Transport = (*Hub)(nil)

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logx.Component("Hub"),
	}
}

// Register makes c reachable by its connection ID.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Str("conn_id", c.id).Int("total_clients", total).Msg("Client registered.")
}

// Unregister removes c if it is still the client registered under its ID and closes its queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if current, ok := h.clients[c.id]; ok && current == c {
		delete(h.clients, c.id)
	}
	total := len(h.clients)
	h.mu.Unlock()

	c.closeSend()
	h.logger.Debug().Str("conn_id", c.id).Int("total_clients", total).Msg("Client unregistered.")
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

func (h *Hub) PublishToOne(connID, event string, payload any) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	data, err := EncodeEnvelope(event, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Error marshaling event.")
		return
	}

	h.deliver(c, data)
}

// PublishToAll marshals the envelope once and queues it on every client.
func (h *Hub) PublishToAll(event string, payload any) {
	data, err := EncodeEnvelope(event, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Error marshaling event for broadcast.")
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, data)
	}
}

// Terminate closes the client's queue; its write loop sends a close frame and drops the socket.
func (h *Hub) Terminate(connID string) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()

	if ok {
		h.logger.Info().Str("conn_id", connID).Msg("Terminating connection.")
		c.closeSend()
	}
}

// CloseAll terminates every connection.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.closeSend()
	}
}

// deliver never blocks; a client whose queue is full is terminated as too slow.
func (h *Hub) deliver(c *Client, data []byte) {
	if c.enqueue(data) {
		return
	}

	h.logger.Warn().Str("conn_id", c.id).Msg("Client send channel full or closed, terminating.")
	c.closeSend()
}
