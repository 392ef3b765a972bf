package ws

import (
	"testing"

	"github.com/rs/zerolog"
)

func newTestRooms(t *testing.T) (*Rooms, *Hub) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	return NewRooms(hub, zerolog.Nop()), hub
}

func TestJoinIsIdempotent(t *testing.T) {
	rooms, _ := newTestRooms(t)

	rooms.Join("c1", "room-1")
	rooms.Join("c1", "room-1")

	members := rooms.Members("room-1")
	if len(members) != 1 || members[0] != "c1" {
		t.Fatalf("expected single membership, got %v", members)
	}
}

func TestJoinUnknownRoomCreatesIt(t *testing.T) {
	rooms, _ := newTestRooms(t)

	rooms.Join("c1", "fresh")
	if len(rooms.Members("fresh")) != 1 {
		t.Fatal("joining an unknown room should create its membership set")
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	rooms, hub := newTestRooms(t)
	sender := &fakeSink{}
	peer := &fakeSink{}
	outsider := &fakeSink{}
	hub.Register("sender", sender)
	hub.Register("peer", peer)
	hub.Register("outsider", outsider)

	rooms.Join("sender", "room-1")
	rooms.Join("peer", "room-1")

	rooms.BroadcastToRoom("room-1", EventDisplayTyping, TypingNotice{SenderID: "u1"}, "sender")

	if len(sender.envelopes(t)) != 0 {
		t.Fatal("sender must not receive its own broadcast")
	}
	if len(peer.envelopes(t)) != 1 {
		t.Fatalf("peer should receive the broadcast, got %d events", len(peer.envelopes(t)))
	}
	if len(outsider.envelopes(t)) != 0 {
		t.Fatal("non-members must not receive room broadcasts")
	}
}

func TestBroadcastToUnknownRoom(t *testing.T) {
	rooms, hub := newTestRooms(t)
	sink := &fakeSink{}
	hub.Register("c1", sink)

	rooms.BroadcastToRoom("nowhere", EventDisplayTyping, TypingNotice{}, "")

	if len(sink.envelopes(t)) != 0 {
		t.Fatal("broadcast to an unknown room should deliver nothing")
	}
}

func TestBroadcastSkipsDisconnectedMember(t *testing.T) {
	rooms, hub := newTestRooms(t)
	peer := &fakeSink{}
	hub.Register("peer", peer)

	// "ghost" joined the room but its connection is gone from the hub.
	rooms.Join("ghost", "room-1")
	rooms.Join("peer", "room-1")

	rooms.BroadcastToRoom("room-1", EventDisplayTyping, TypingNotice{}, "")

	if len(peer.envelopes(t)) != 1 {
		t.Fatal("live member should still receive the broadcast")
	}
}

func TestLeaveAll(t *testing.T) {
	rooms, _ := newTestRooms(t)

	rooms.Join("c1", "room-1")
	rooms.Join("c1", "room-2")
	rooms.Join("c2", "room-1")

	rooms.LeaveAll("c1")

	if len(rooms.Members("room-1")) != 1 {
		t.Fatalf("room-1 should retain c2, got %v", rooms.Members("room-1"))
	}
	if len(rooms.Members("room-2")) != 0 {
		t.Fatal("room-2 should be empty after c1 leaves")
	}
}

func TestLeave(t *testing.T) {
	rooms, _ := newTestRooms(t)

	rooms.Join("c1", "room-1")
	rooms.Leave("c1", "room-1")
	rooms.Leave("c1", "never-joined")

	if len(rooms.Members("room-1")) != 0 {
		t.Fatal("expected empty room after leave")
	}
}
