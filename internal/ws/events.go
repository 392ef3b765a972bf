// Package ws implements the live channel: the presence registry, room
// broadcaster, typing relay, and message ingest pipeline, served over a
// persistent WebSocket connection per client.
package ws

import (
	"encoding/json"

	"github.com/talkwire/talkwire/internal/models"
)

// Event names carried on the live channel.
const (
	EventUserConnected  = "user_connected"
	EventUserStatus     = "user_status"
	EventJoinRoom       = "join_room"
	EventTyping         = "typing"
	EventStopTyping     = "stop_typing"
	EventDisplayTyping  = "display_typing"
	EventHideTyping     = "hide_typing"
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
	EventError          = "error"
)

// Envelope is the wire format for all live-channel traffic in both
// directions: a named event with an opaque JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an event and its payload into a wire-ready envelope.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// StatusPayload is broadcast to every connection when a user's presence
// changes.
type StatusPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"` // "online" or "offline"
}

// TypingPayload is the client-side typing start/stop notification.
type TypingPayload struct {
	Room     string `json:"room"`
	SenderID string `json:"senderId"`
	Username string `json:"username"`
}

// TypingNotice is the server-side typing fan-out, scoped to a room.
type TypingNotice struct {
	SenderID string `json:"senderId"`
	Username string `json:"username"`
}

// SenderInfo carries display information about a message sender.
type SenderInfo struct {
	Username string `json:"username"`
}

// SendMessagePayload is a client's message submission. ID is a provisional
// client-generated identifier used only for optimistic rendering; the server
// assigns the canonical one.
type SendMessagePayload struct {
	ID       string     `json:"id,omitempty"`
	Room     string     `json:"room"`
	SenderID string     `json:"senderId"`
	Sender   SenderInfo `json:"sender"`
	Content  string     `json:"content"`
	FileName string     `json:"fileName,omitempty"`
	Kind     string     `json:"type"`
}

// ReceiveMessagePayload is the live delivery of a persisted message to the
// other members of a room. ProvisionalID echoes the sender's client-side id
// so recipients of a relayed retry can reconcile duplicates.
type ReceiveMessagePayload struct {
	models.Message
	Sender        SenderInfo `json:"sender"`
	ProvisionalID string     `json:"provisionalId,omitempty"`
}

// ErrorPayload is sent back to a connection whose event failed server-side,
// so the client can mark an optimistically rendered message as unsent.
type ErrorPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}
