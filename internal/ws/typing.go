package ws

// Typing relays typing start/stop notifications to a room. The relay is a
// pure fan-out with no server-side state or timeout: the client that sent a
// typing start is responsible for sending the stop after its debounce window.
// A client that crashes mid-typing leaves a stale indicator on its peers.
type Typing struct {
	rooms *Rooms
}

// NewTyping creates a typing relay over the given room broadcaster.
func NewTyping(rooms *Rooms) *Typing {
	return &Typing{rooms: rooms}
}

// Start broadcasts a typing indicator to the room, excluding the sender's
// own connection.
func (t *Typing) Start(roomID string, notice TypingNotice, senderConnID string) {
	t.rooms.BroadcastToRoom(roomID, EventDisplayTyping, notice, senderConnID)
}

// Stop broadcasts the end of a typing indicator to the room.
func (t *Typing) Stop(roomID string, notice TypingNotice, senderConnID string) {
	t.rooms.BroadcastToRoom(roomID, EventHideTyping, notice, senderConnID)
}
