package ws

import (
	"sync"

	"github.com/rs/zerolog"
)

// Sink is the outbound side of a connection as seen by the registries. The
// presence registry and room broadcaster never hold connection objects, only
// identifiers; delivery goes through a Sink resolved at broadcast time.
type Sink interface {
	// Queue enqueues a payload for delivery. It must not block; it returns
	// false if the connection's buffer is full or the connection is closed.
	Queue(payload []byte) bool
}

// SinkResolver resolves a connection identifier to its live outbound sink.
type SinkResolver interface {
	Sink(connID string) (Sink, bool)
}

// Hub tracks every live connection by identifier. It owns no chat semantics:
// presence and room membership are layered on top, keyed by connection id.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]Sink

	// OnDisconnect is invoked after a connection is removed, with the hub
	// lock released. Wiring uses it to release presence and room membership.
	OnDisconnect func(connID string)

	logger zerolog.Logger
}

// NewHub creates an empty connection hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]Sink),
		logger: logger,
	}
}

// Register adds a connection's sink under its identifier.
func (h *Hub) Register(connID string, sink Sink) {
	h.mu.Lock()
	h.conns[connID] = sink
	total := len(h.conns)
	h.mu.Unlock()

	h.logger.Info().Str("conn_id", connID).Int("connections", total).Msg("connection registered")
}

// Unregister removes a connection and triggers the disconnect hook.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	_, ok := h.conns[connID]
	if ok {
		delete(h.conns, connID)
	}
	total := len(h.conns)
	h.mu.Unlock()

	if !ok {
		return
	}

	h.logger.Info().Str("conn_id", connID).Int("connections", total).Msg("connection unregistered")

	if h.OnDisconnect != nil {
		h.OnDisconnect(connID)
	}
}

// Sink returns the outbound sink for a connection id.
func (h *Hub) Sink(connID string) (Sink, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.conns[connID]
	return s, ok
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// BroadcastAll delivers an event to every live connection, optionally
// excluding one. Used for global presence change notifications.
func (h *Hub) BroadcastAll(event string, data any, excludeConnID string) {
	payload, err := Encode(event, data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("failed to encode broadcast")
		return
	}

	h.mu.RLock()
	sinks := make([]Sink, 0, len(h.conns))
	for id, s := range h.conns {
		if id == excludeConnID {
			continue
		}
		sinks = append(sinks, s)
	}
	h.mu.RUnlock()

	for _, s := range sinks {
		if !s.Queue(payload) {
			h.logger.Warn().Str("event", event).Msg("dropped broadcast: send buffer full")
		}
	}
}
