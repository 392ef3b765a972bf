package ws

import (
	"sync"

	"github.com/rs/zerolog"
)

// Rooms manages connection membership in logical broadcast groups and fans
// events out to members. Room identifiers are opaque here: only the ingest
// pipeline interprets them as conversation keys. Membership is
// connection-scoped and lost on disconnect; a reconnecting client rejoins.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{} // roomID -> set of connIDs

	resolver SinkResolver
	logger   zerolog.Logger
}

// NewRooms creates an empty room broadcaster delivering through resolver.
func NewRooms(resolver SinkResolver, logger zerolog.Logger) *Rooms {
	return &Rooms{
		members:  make(map[string]map[string]struct{}),
		resolver: resolver,
		logger:   logger,
	}
}

// Join adds a connection to a room's membership. Idempotent; joining an
// unknown room simply creates an empty membership set for it.
func (r *Rooms) Join(connID, roomID string) {
	r.mu.Lock()
	set, ok := r.members[roomID]
	if !ok {
		set = make(map[string]struct{})
		r.members[roomID] = set
	}
	set[connID] = struct{}{}
	r.mu.Unlock()

	r.logger.Debug().Str("conn_id", connID).Str("room", roomID).Msg("joined room")
}

// Leave removes a connection from a single room.
func (r *Rooms) Leave(connID, roomID string) {
	r.mu.Lock()
	if set, ok := r.members[roomID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.members, roomID)
		}
	}
	r.mu.Unlock()
}

// LeaveAll removes a connection from every room it has joined. Called on
// transport disconnect.
func (r *Rooms) LeaveAll(connID string) {
	r.mu.Lock()
	for roomID, set := range r.members {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.members, roomID)
		}
	}
	r.mu.Unlock()
}

// Members returns a snapshot of the connection ids joined to a room.
func (r *Rooms) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.members[roomID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// BroadcastToRoom delivers an event to every connection joined to roomID
// except the optionally excluded one (used to avoid echoing a sender's own
// action back to itself).
func (r *Rooms) BroadcastToRoom(roomID, event string, data any, excludeConnID string) {
	payload, err := Encode(event, data)
	if err != nil {
		r.logger.Error().Err(err).Str("event", event).Str("room", roomID).Msg("failed to encode room broadcast")
		return
	}

	r.mu.RLock()
	set := r.members[roomID]
	targets := make([]string, 0, len(set))
	for id := range set {
		if id == excludeConnID {
			continue
		}
		targets = append(targets, id)
	}
	r.mu.RUnlock()

	for _, id := range targets {
		sink, ok := r.resolver.Sink(id)
		if !ok {
			continue // disconnected between snapshot and delivery
		}
		if !sink.Queue(payload) {
			r.logger.Warn().Str("event", event).Str("room", roomID).Str("conn_id", id).
				Msg("dropped room broadcast: send buffer full")
		}
	}
}
