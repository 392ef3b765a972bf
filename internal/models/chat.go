package models

import (
	"time"

	"github.com/google/uuid"
)

// LastMessage is the denormalized summary of a conversation's most recent
// message, used for list-view rendering without fetching full history.
type LastMessage struct {
	Content  string    `json:"content"`
	SenderID string    `json:"sender,omitempty"`
	Time     time.Time `json:"time"`
	Kind     string    `json:"type"` // text, image, file
}

// Chat represents a conversation between two or more users. A direct chat has
// exactly two participants and no group name.
type Chat struct {
	ID           uuid.UUID   `json:"id"`
	Participants []uuid.UUID `json:"participants"`
	IsGroup      bool        `json:"is_group"`
	GroupName    string      `json:"group_name,omitempty"`
	LastMessage  LastMessage `json:"last_message"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// HasParticipant reports whether the given user is part of the conversation.
func (c *Chat) HasParticipant(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
