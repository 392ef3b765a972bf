package ws

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// StatusStore persists the durable side of a presence change: the online
// flag on announce, and the offline flag plus last-seen timestamp on release.
// Persistence is fire-and-forget; failures never block the live broadcast.
type StatusStore interface {
	SetUserOnline(ctx context.Context, userID string) error
	SetUserOffline(ctx context.Context, userID string, lastSeen time.Time) error
}

// Presence is the authoritative in-memory registry of who is online right
// now. Each user identity maps to at most one connection; a second announce
// for the same user silently replaces the first (most recent connection
// wins). The registry holds connection identifiers only, never connections.
type Presence struct {
	mu     sync.Mutex
	byUser map[string]string // userID -> connID
	byConn map[string]string // connID -> userID

	hub    *Hub
	store  StatusStore
	logger zerolog.Logger
}

// NewPresence creates an empty presence registry. store may be nil in tests.
func NewPresence(hub *Hub, store StatusStore, logger zerolog.Logger) *Presence {
	return &Presence{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
		hub:    hub,
		store:  store,
		logger: logger,
	}
}

// Announce records userID -> connID, replacing any prior mapping for the
// user, broadcasts the online status to every connection, and persists the
// online flag in the background.
func (p *Presence) Announce(connID, userID string) {
	p.mu.Lock()
	if prev, ok := p.byUser[userID]; ok && prev != connID {
		// The earlier connection's mapping is orphaned, not closed; its
		// eventual disconnect must not emit an offline event.
		delete(p.byConn, prev)
	}
	p.byUser[userID] = connID
	p.byConn[connID] = userID
	p.mu.Unlock()

	p.logger.Debug().Str("user_id", userID).Str("conn_id", connID).Msg("presence announced")

	p.hub.BroadcastAll(EventUserStatus, StatusPayload{UserID: userID, Status: "online"}, "")

	p.persist(func(ctx context.Context) error {
		return p.store.SetUserOnline(ctx, userID)
	}, userID)
}

// Lookup returns the connection currently mapped to a user identity.
func (p *Presence) Lookup(userID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	connID, ok := p.byUser[userID]
	return connID, ok
}

// Online reports whether a user identity has an active connection.
func (p *Presence) Online(userID string) bool {
	_, ok := p.Lookup(userID)
	return ok
}

// OnlineUsers returns the identities of all currently announced users.
func (p *Presence) OnlineUsers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	users := make([]string, 0, len(p.byUser))
	for u := range p.byUser {
		users = append(users, u)
	}
	return users
}

// Release removes the presence mapping on transport disconnect. It only acts
// if the stored mapping still points at the disconnecting connection: if the
// user reconnected from a newer connection first, the release is a no-op and
// no offline event is emitted.
func (p *Presence) Release(connID string) {
	p.mu.Lock()
	userID, ok := p.byConn[connID]
	if !ok || p.byUser[userID] != connID {
		p.mu.Unlock()
		return
	}
	delete(p.byUser, userID)
	delete(p.byConn, connID)
	p.mu.Unlock()

	p.logger.Debug().Str("user_id", userID).Str("conn_id", connID).Msg("presence released")

	p.hub.BroadcastAll(EventUserStatus, StatusPayload{UserID: userID, Status: "offline"}, "")

	lastSeen := time.Now()
	p.persist(func(ctx context.Context) error {
		return p.store.SetUserOffline(ctx, userID, lastSeen)
	}, userID)
}

func (p *Presence) persist(fn func(ctx context.Context) error, userID string) {
	if p.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			p.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to persist presence change")
		}
	}()
}
