package live

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// clientBufferSize is the per-observer send queue. A client that cannot keep
// up has messages dropped rather than stalling the publisher.
const clientBufferSize = 32

// Client is one connected dashboard observer.
type Client struct {
	send chan []byte
}

// Send returns the channel the transport drains to the observer.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Hub fans live update envelopes out to all registered observers. Publishing
// never blocks: a full client queue drops the message for that client only.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
	dropped atomic.Int64
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a new observer and returns its client handle.
func (h *Hub) Register() *Client {
	client := &Client{send: make(chan []byte, clientBufferSize)}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("Live client registered", slog.Int("clients", count))
	return client
}

// Unregister removes an observer and closes its queue. Safe to call twice.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("Live client unregistered", slog.Int("clients", count))
}

// ClientCount returns the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish wraps the event in an envelope and fans it out. Implements
// events.Notifier. Marshal failures are logged and dropped; a write pipeline
// must never fail because an observer payload did.
func (h *Hub) Publish(event string, data map[string]any) {
	envelope := map[string]any{
		"event":     event,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		h.logger.Error("Failed to marshal live envelope",
			slog.String("event", event),
			slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			h.dropped.Add(1)
			h.logger.Debug("Dropped live message for slow client",
				slog.String("event", event))
		}
	}
}

// DroppedCount returns how many messages were dropped for slow clients since
// startup.
func (h *Hub) DroppedCount() int64 {
	return h.dropped.Load()
}
