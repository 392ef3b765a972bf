package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talkwire/talkwire/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		username TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT DEFAULT 'user',
		is_banned BOOLEAN DEFAULT FALSE,
		is_online BOOLEAN DEFAULT FALSE,
		last_seen TIMESTAMPTZ,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS chats (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		is_group BOOLEAN DEFAULT FALSE,
		group_name TEXT DEFAULT '',
		last_content TEXT DEFAULT '',
		last_sender TEXT DEFAULT '',
		last_time TIMESTAMPTZ,
		last_kind TEXT DEFAULT 'text',
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS chat_participants (
		chat_id UUID NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		PRIMARY KEY (chat_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		content TEXT NOT NULL,
		file_name TEXT DEFAULT '',
		ts BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_participants_user ON chat_participants(user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_room_ts ON messages(room_id, ts);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const pgUserColumns = `id, username, email, password_hash, role, is_banned, is_online, last_seen, created_at, updated_at`

func scanPgUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsBanned,
		&user.IsOnline,
		&user.LastSeen,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, username, email, passwordHash, role string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+pgUserColumns+`
	`, username, email, passwordHash, role)
	return scanPgUser(row)
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgUserColumns+` FROM users WHERE id = $1`, id)
	return scanPgUser(row)
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgUserColumns+` FROM users WHERE email = $1`, email)
	return scanPgUser(row)
}

// SearchUsers finds users whose username or email matches the query,
// case-insensitively.
func (s *PostgresStore) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + query + "%"

	rows, err := s.pool.Query(ctx, `
		SELECT `+pgUserColumns+` FROM users
		WHERE username ILIKE $1 OR email ILIKE $1
		ORDER BY username
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPgUsers(rows)
}

// ListUsers retrieves users with optional search and pagination, newest
// first. Returns the matching total for page calculation.
func (s *PostgresStore) ListUsers(ctx context.Context, search string, limit, offset int) ([]models.User, int, error) {
	pattern := "%" + search + "%"

	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM users WHERE username ILIKE $1 OR email ILIKE $1
	`, pattern).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+pgUserColumns+` FROM users
		WHERE username ILIKE $1 OR email ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users, err := collectPgUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func collectPgUsers(rows pgx.Rows) ([]models.User, error) {
	var users []models.User
	for rows.Next() {
		user, err := scanPgUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// SetUserBanned sets or clears the ban flag.
func (s *PostgresStore) SetUserBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET is_banned = $1, updated_at = NOW() WHERE id = $2
	`, banned, id)
	return err
}

// SetUserOnline marks a user as online.
func (s *PostgresStore) SetUserOnline(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET is_online = TRUE, updated_at = NOW() WHERE id = $1
	`, userID)
	return err
}

// SetUserOffline marks a user as offline and records when they were last
// seen.
func (s *PostgresStore) SetUserOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET is_online = FALSE, last_seen = $1, updated_at = NOW() WHERE id = $2
	`, lastSeen, userID)
	return err
}

// CountUsers returns the total number of registered users.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CountUsersSince returns the number of users created after the given time.
func (s *PostgresStore) CountUsersSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE created_at >= $1`, since).Scan(&count)
	return count, err
}

const pgChatColumns = `id, is_group, group_name, last_content, last_sender, last_time, last_kind, created_at, updated_at`

func scanPgChat(row pgx.Row) (*models.Chat, error) {
	chat := &models.Chat{}
	var lastTime *time.Time
	err := row.Scan(
		&chat.ID,
		&chat.IsGroup,
		&chat.GroupName,
		&chat.LastMessage.Content,
		&chat.LastMessage.SenderID,
		&lastTime,
		&chat.LastMessage.Kind,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if lastTime != nil {
		chat.LastMessage.Time = *lastTime
	}
	return chat, nil
}

func (s *PostgresStore) loadParticipants(ctx context.Context, chat *models.Chat) error {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id FROM chat_participants WHERE chat_id = $1
	`, chat.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		chat.Participants = append(chat.Participants, id)
	}
	return rows.Err()
}

// CreateChat creates a conversation with the given participants.
func (s *PostgresStore) CreateChat(ctx context.Context, participants []uuid.UUID, isGroup bool, groupName string) (*models.Chat, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO chats (is_group, group_name, last_content, last_time, last_kind)
		VALUES ($1, $2, 'Draft', NOW(), 'text')
		RETURNING id
	`, isGroup, groupName).Scan(&id)
	if err != nil {
		return nil, err
	}

	for _, p := range participants {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2)
		`, id, p); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return s.GetChat(ctx, id.String())
}

// GetChat retrieves a conversation by ID, including participants.
func (s *PostgresStore) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	id, err := uuid.Parse(chatID)
	if err != nil {
		return nil, nil
	}
	row := s.pool.QueryRow(ctx, `SELECT `+pgChatColumns+` FROM chats WHERE id = $1`, id)
	chat, err := scanPgChat(row)
	if err != nil || chat == nil {
		return chat, err
	}
	if err := s.loadParticipants(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// FindDirectChat finds the direct conversation between two users, if one
// exists.
func (s *PostgresStore) FindDirectChat(ctx context.Context, a, b uuid.UUID) (*models.Chat, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT c.id FROM chats c
		JOIN chat_participants p1 ON p1.chat_id = c.id AND p1.user_id = $1
		JOIN chat_participants p2 ON p2.chat_id = c.id AND p2.user_id = $2
		WHERE c.is_group = FALSE
		LIMIT 1
	`, a, b).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s.GetChat(ctx, id.String())
}

// ListChatsForUser retrieves all conversations a user participates in, most
// recently updated first.
func (s *PostgresStore) ListChatsForUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgChatColumns+` FROM chats
		WHERE id IN (SELECT chat_id FROM chat_participants WHERE user_id = $1)
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.collectChats(ctx, rows)
}

// ListRecentChats retrieves the most recently updated conversations.
func (s *PostgresStore) ListRecentChats(ctx context.Context, limit int) ([]models.Chat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgChatColumns+` FROM chats ORDER BY updated_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.collectChats(ctx, rows)
}

func (s *PostgresStore) collectChats(ctx context.Context, rows pgx.Rows) ([]models.Chat, error) {
	var chats []models.Chat
	for rows.Next() {
		chat, err := scanPgChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *chat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	for i := range chats {
		if err := s.loadParticipants(ctx, &chats[i]); err != nil {
			return nil, err
		}
	}
	return chats, nil
}

// UpdateLastMessage sets the conversation's denormalized summary.
func (s *PostgresStore) UpdateLastMessage(ctx context.Context, chatID string, last models.LastMessage) error {
	id, err := uuid.Parse(chatID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE chats
		SET last_content = $1, last_sender = $2, last_time = $3, last_kind = $4, updated_at = NOW()
		WHERE id = $5
	`, last.Content, last.SenderID, last.Time, last.Kind, id)
	return err
}

// DeleteChat hard-deletes a conversation and cascades to its messages.
func (s *PostgresStore) DeleteChat(ctx context.Context, chatID string) error {
	id, err := uuid.Parse(chatID)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE room_id = $1`, chatID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CountChats returns the total number of conversations.
func (s *PostgresStore) CountChats(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chats`).Scan(&count)
	return count, err
}

// AppendMessage persists a message. The caller assigns the identifier and
// timestamp; the record is immutable once written.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, room_id, sender_id, kind, content, file_name, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.RoomID, msg.SenderID, msg.Kind, msg.Content, msg.FileName, msg.Timestamp)
	return err
}

// ListMessages retrieves a room's full message history, oldest first.
func (s *PostgresStore) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, sender_id, kind, content, file_name, ts
		FROM messages WHERE room_id = $1 ORDER BY ts ASC, id ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Kind, &msg.Content, &msg.FileName, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CountMessages returns the total number of stored messages.
func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
