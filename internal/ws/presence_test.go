package ws

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// fakeSink records every payload queued to it.
type fakeSink struct {
	mu       sync.Mutex
	payloads [][]byte
	full     bool
}

func (s *fakeSink) Queue(p []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.payloads = append(s.payloads, p)
	return true
}

func (s *fakeSink) envelopes(t *testing.T) []Envelope {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Envelope, 0, len(s.payloads))
	for _, p := range s.payloads {
		var env Envelope
		if err := json.Unmarshal(p, &env); err != nil {
			t.Fatalf("undecodable payload %q: %v", p, err)
		}
		out = append(out, env)
	}
	return out
}

func (s *fakeSink) statusEvents(t *testing.T) []StatusPayload {
	t.Helper()
	var out []StatusPayload
	for _, env := range s.envelopes(t) {
		if env.Event != EventUserStatus {
			continue
		}
		var sp StatusPayload
		if err := json.Unmarshal(env.Data, &sp); err != nil {
			t.Fatal(err)
		}
		out = append(out, sp)
	}
	return out
}

func newTestPresence(t *testing.T) (*Presence, *Hub) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	return NewPresence(hub, nil, zerolog.Nop()), hub
}

func TestAnnounceAndLookup(t *testing.T) {
	p, hub := newTestPresence(t)
	hub.Register("c1", &fakeSink{})

	p.Announce("c1", "alice")

	connID, ok := p.Lookup("alice")
	if !ok || connID != "c1" {
		t.Fatalf("expected alice -> c1, got %q (ok=%v)", connID, ok)
	}
	if !p.Online("alice") {
		t.Fatal("alice should be online")
	}
	if p.Online("bob") {
		t.Fatal("bob should not be online")
	}
}

func TestAnnounceBroadcastsOnline(t *testing.T) {
	p, hub := newTestPresence(t)
	observer := &fakeSink{}
	hub.Register("c1", &fakeSink{})
	hub.Register("observer", observer)

	p.Announce("c1", "alice")

	events := observer.statusEvents(t)
	if len(events) != 1 {
		t.Fatalf("expected 1 status event, got %d", len(events))
	}
	if events[0].UserID != "alice" || events[0].Status != "online" {
		t.Fatalf("unexpected status event %+v", events[0])
	}
}

func TestAnnounceReplacesPriorConnection(t *testing.T) {
	p, hub := newTestPresence(t)
	hub.Register("c1", &fakeSink{})
	hub.Register("c2", &fakeSink{})

	p.Announce("c1", "alice")
	p.Announce("c2", "alice")

	connID, ok := p.Lookup("alice")
	if !ok || connID != "c2" {
		t.Fatalf("expected most recent connection c2, got %q", connID)
	}
}

// A user reconnects before the old connection's disconnect fires. The stale
// release must neither remove the new mapping nor emit an offline event.
func TestSupersededReleaseIsNoOp(t *testing.T) {
	p, hub := newTestPresence(t)
	observer := &fakeSink{}
	hub.Register("c1", &fakeSink{})
	hub.Register("c2", &fakeSink{})
	hub.Register("observer", observer)

	p.Announce("c1", "alice")
	p.Announce("c2", "alice")
	p.Release("c1")

	if !p.Online("alice") {
		t.Fatal("alice should still be online via c2")
	}
	for _, ev := range observer.statusEvents(t) {
		if ev.Status == "offline" {
			t.Fatalf("stale release must not broadcast offline, got %+v", ev)
		}
	}
}

func TestReleaseBroadcastsOffline(t *testing.T) {
	p, hub := newTestPresence(t)
	observer := &fakeSink{}
	hub.Register("c1", &fakeSink{})
	hub.Register("observer", observer)

	p.Announce("c1", "alice")
	p.Release("c1")

	if p.Online("alice") {
		t.Fatal("alice should be offline")
	}
	events := observer.statusEvents(t)
	if len(events) != 2 {
		t.Fatalf("expected online+offline events, got %d", len(events))
	}
	if events[1].UserID != "alice" || events[1].Status != "offline" {
		t.Fatalf("unexpected final event %+v", events[1])
	}
}

func TestReleaseUnknownConnection(t *testing.T) {
	p, hub := newTestPresence(t)
	observer := &fakeSink{}
	hub.Register("observer", observer)

	p.Release("never-announced")

	if len(observer.statusEvents(t)) != 0 {
		t.Fatal("release of unknown connection must not broadcast")
	}
}

func TestOnlineUsers(t *testing.T) {
	p, hub := newTestPresence(t)
	hub.Register("c1", &fakeSink{})
	hub.Register("c2", &fakeSink{})

	p.Announce("c1", "alice")
	p.Announce("c2", "bob")

	users := p.OnlineUsers()
	if len(users) != 2 {
		t.Fatalf("expected 2 online users, got %d", len(users))
	}
	seen := map[string]bool{}
	for _, u := range users {
		seen[u] = true
	}
	if !seen["alice"] || !seen["bob"] {
		t.Fatalf("unexpected online set %v", users)
	}
}
