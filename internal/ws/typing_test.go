package ws

import (
	"encoding/json"
	"testing"
)

func TestTypingStartFansOutToRoom(t *testing.T) {
	rooms, hub := newTestRooms(t)
	sender := &fakeSink{}
	peer := &fakeSink{}
	hub.Register("sender", sender)
	hub.Register("peer", peer)
	rooms.Join("sender", "room-1")
	rooms.Join("peer", "room-1")

	typing := NewTyping(rooms)
	typing.Start("room-1", TypingNotice{SenderID: "u1", Username: "alice"}, "sender")

	if len(sender.envelopes(t)) != 0 {
		t.Fatal("typing indicator must not echo back to the sender")
	}
	events := peer.envelopes(t)
	if len(events) != 1 || events[0].Event != EventDisplayTyping {
		t.Fatalf("expected one display_typing event, got %v", events)
	}
	var notice TypingNotice
	if err := json.Unmarshal(events[0].Data, &notice); err != nil {
		t.Fatal(err)
	}
	if notice.Username != "alice" {
		t.Fatalf("expected alice, got %q", notice.Username)
	}
}

func TestTypingStopFansOutToRoom(t *testing.T) {
	rooms, hub := newTestRooms(t)
	peer := &fakeSink{}
	hub.Register("sender", &fakeSink{})
	hub.Register("peer", peer)
	rooms.Join("sender", "room-1")
	rooms.Join("peer", "room-1")

	typing := NewTyping(rooms)
	typing.Stop("room-1", TypingNotice{SenderID: "u1"}, "sender")

	events := peer.envelopes(t)
	if len(events) != 1 || events[0].Event != EventHideTyping {
		t.Fatalf("expected one hide_typing event, got %v", events)
	}
}
