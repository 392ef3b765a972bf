package ws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/talkwire/talkwire/internal/metrics"
	"github.com/talkwire/talkwire/internal/models"
)

// ErrInvalidMessage is returned when a message submission fails validation.
// Nothing is persisted and nothing is broadcast.
var ErrInvalidMessage = errors.New("invalid message")

// ChatStore is the durable side of the ingest pipeline.
type ChatStore interface {
	AppendMessage(ctx context.Context, msg *models.Message) error
	UpdateLastMessage(ctx context.Context, chatID string, last models.LastMessage) error
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)
}

// UnreadCounter tracks per-participant unread counts for a conversation.
type UnreadCounter interface {
	IncrementUnread(ctx context.Context, chatID string, userIDs []string) error
}

// Ingest validates, persists, and rebroadcasts message sends. It is the only
// component that interprets a room identifier as a conversation key, and it
// guarantees that a message is never broadcast unless it was durably stored
// first.
type Ingest struct {
	store  ChatStore
	unread UnreadCounter // optional
	rooms  *Rooms
	logger zerolog.Logger
}

// NewIngest creates a message ingest pipeline. unread may be nil.
func NewIngest(store ChatStore, unread UnreadCounter, rooms *Rooms, logger zerolog.Logger) *Ingest {
	return &Ingest{store: store, unread: unread, rooms: rooms, logger: logger}
}

// Send runs one message through the pipeline: validate, persist, update the
// conversation summary, broadcast to the other room members, and return the
// persisted message. A persistence failure aborts the whole operation; a
// summary-update failure leaves a stale sidebar entry but does not fail the
// send, since the next successful send repairs it.
func (i *Ingest) Send(ctx context.Context, in SendMessagePayload, senderConnID string) (*models.Message, error) {
	if in.Room == "" {
		return nil, fmt.Errorf("%w: room is required", ErrInvalidMessage)
	}
	if in.SenderID == "" {
		return nil, fmt.Errorf("%w: senderId is required", ErrInvalidMessage)
	}
	if !models.ValidKind(in.Kind) {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, in.Kind)
	}

	msg := &models.Message{
		ID:        ulid.Make().String(),
		RoomID:    in.Room,
		SenderID:  in.SenderID,
		Kind:      in.Kind,
		Content:   in.Content,
		FileName:  in.FileName,
		Timestamp: time.Now().UnixMilli(),
	}

	if err := i.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	last := models.LastMessage{
		Content:  in.Content,
		SenderID: in.SenderID,
		Time:     time.UnixMilli(msg.Timestamp),
		Kind:     in.Kind,
	}
	if err := i.store.UpdateLastMessage(ctx, in.Room, last); err != nil {
		// The message itself is durable; the sidebar summary is stale until
		// the next successful send.
		i.logger.Warn().Err(err).Str("room", in.Room).Msg("failed to update conversation summary")
	}

	i.bumpUnread(ctx, msg)

	i.rooms.BroadcastToRoom(in.Room, EventReceiveMessage, ReceiveMessagePayload{
		Message:       *msg,
		Sender:        in.Sender,
		ProvisionalID: in.ID,
	}, senderConnID)

	metrics.MessagesSent.WithLabelValues(msg.Kind).Inc()

	return msg, nil
}

// bumpUnread increments the unread counter of every participant except the
// sender. Best-effort: counter failures never fail a send.
func (i *Ingest) bumpUnread(ctx context.Context, msg *models.Message) {
	if i.unread == nil {
		return
	}

	chat, err := i.store.GetChat(ctx, msg.RoomID)
	if err != nil || chat == nil {
		return
	}

	others := make([]string, 0, len(chat.Participants))
	for _, p := range chat.Participants {
		if p.String() != msg.SenderID {
			others = append(others, p.String())
		}
	}
	if len(others) == 0 {
		return
	}

	if err := i.unread.IncrementUnread(ctx, msg.RoomID, others); err != nil {
		i.logger.Warn().Err(err).Str("room", msg.RoomID).Msg("failed to bump unread counters")
	}
}
