package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher routes decoded envelopes from client read pumps to the core
// components. Each event is handled as an independent unit of work against
// an independently keyed resource, so no global lock is needed.
type Dispatcher struct {
	presence *Presence
	rooms    *Rooms
	typing   *Typing
	ingest   *Ingest
	logger   zerolog.Logger
}

// NewDispatcher wires the core components behind a single event entry point.
func NewDispatcher(presence *Presence, rooms *Rooms, typing *Typing, ingest *Ingest, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		presence: presence,
		rooms:    rooms,
		typing:   typing,
		ingest:   ingest,
		logger:   logger,
	}
}

// Dispatch handles one incoming envelope from the given connection. Errors
// are reported back to the sending connection only; they never tear down the
// connection.
func (d *Dispatcher) Dispatch(connID string, sink Sink, env Envelope) {
	switch env.Event {
	case EventUserConnected:
		d.handleUserConnected(connID, env.Data)
	case EventJoinRoom:
		d.handleJoinRoom(connID, env.Data)
	case EventTyping:
		d.handleTyping(connID, env.Data, true)
	case EventStopTyping:
		d.handleTyping(connID, env.Data, false)
	case EventSendMessage:
		d.handleSendMessage(connID, sink, env.Data)
	default:
		d.logger.Warn().Str("event", env.Event).Str("conn_id", connID).Msg("unknown event")
	}
}

// handleUserConnected announces a connection's identity. The payload is
// either a bare JSON string or an object with a userId field.
func (d *Dispatcher) handleUserConnected(connID string, data json.RawMessage) {
	var userID string
	if err := json.Unmarshal(data, &userID); err != nil {
		var obj struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(data, &obj); err != nil || obj.UserID == "" {
			d.logger.Warn().Str("conn_id", connID).Msg("malformed user_connected payload")
			return
		}
		userID = obj.UserID
	}
	if userID == "" {
		return
	}
	d.presence.Announce(connID, userID)
}

func (d *Dispatcher) handleJoinRoom(connID string, data json.RawMessage) {
	var roomID string
	if err := json.Unmarshal(data, &roomID); err != nil {
		var obj struct {
			Room string `json:"room"`
		}
		if err := json.Unmarshal(data, &obj); err != nil || obj.Room == "" {
			d.logger.Warn().Str("conn_id", connID).Msg("malformed join_room payload")
			return
		}
		roomID = obj.Room
	}
	if roomID == "" {
		return
	}
	d.rooms.Join(connID, roomID)
}

func (d *Dispatcher) handleTyping(connID string, data json.RawMessage, start bool) {
	var p TypingPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		d.logger.Warn().Str("conn_id", connID).Msg("malformed typing payload")
		return
	}

	notice := TypingNotice{SenderID: p.SenderID, Username: p.Username}
	if start {
		d.typing.Start(p.Room, notice, connID)
	} else {
		d.typing.Stop(p.Room, notice, connID)
	}
}

func (d *Dispatcher) handleSendMessage(connID string, sink Sink, data json.RawMessage) {
	var p SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		d.replyError(sink, EventSendMessage, "malformed payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := d.ingest.Send(ctx, p, connID); err != nil {
		if errors.Is(err, ErrInvalidMessage) {
			d.logger.Warn().Err(err).Str("conn_id", connID).Msg("rejected message")
		} else {
			d.logger.Error().Err(err).Str("conn_id", connID).Str("room", p.Room).Msg("message send failed")
		}
		d.replyError(sink, EventSendMessage, err.Error())
	}
}

// replyError queues an error event on the failing connection so its client
// can mark the optimistic render as unsent.
func (d *Dispatcher) replyError(sink Sink, event, msg string) {
	if sink == nil {
		return
	}
	payload, err := Encode(EventError, ErrorPayload{Event: event, Message: msg})
	if err != nil {
		return
	}
	sink.Queue(payload)
}
