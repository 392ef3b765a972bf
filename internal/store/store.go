package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/talkwire/talkwire/internal/models"
)

// DataStore defines the interface for durable storage of users,
// conversations, and messages. Both PostgresStore and SQLiteStore implement
// this interface; the live channel consumes the presence and chat subsets.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, username, email, passwordHash, role string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error)
	ListUsers(ctx context.Context, search string, limit, offset int) ([]models.User, int, error)
	SetUserBanned(ctx context.Context, id uuid.UUID, banned bool) error
	SetUserOnline(ctx context.Context, userID string) error
	SetUserOffline(ctx context.Context, userID string, lastSeen time.Time) error
	CountUsers(ctx context.Context) (int64, error)
	CountUsersSince(ctx context.Context, since time.Time) (int64, error)

	// Conversation operations
	CreateChat(ctx context.Context, participants []uuid.UUID, isGroup bool, groupName string) (*models.Chat, error)
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)
	FindDirectChat(ctx context.Context, a, b uuid.UUID) (*models.Chat, error)
	ListChatsForUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error)
	ListRecentChats(ctx context.Context, limit int) ([]models.Chat, error)
	UpdateLastMessage(ctx context.Context, chatID string, last models.LastMessage) error
	DeleteChat(ctx context.Context, chatID string) error
	CountChats(ctx context.Context) (int64, error)

	// Message operations
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, roomID string) ([]models.Message, error)
	CountMessages(ctx context.Context) (int64, error)
}
