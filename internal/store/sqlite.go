package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/talkwire/talkwire/internal/models"
)

// SQLiteStore handles SQLite database operations. Used in development and
// single-node deployments; production uses PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/talkwire.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/talkwire.db"
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// An in-memory database exists per connection; cap the pool at one so
	// every caller sees the same data.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT DEFAULT 'user',
		is_banned INTEGER DEFAULT 0,
		is_online INTEGER DEFAULT 0,
		last_seen DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		is_group INTEGER DEFAULT 0,
		group_name TEXT DEFAULT '',
		last_content TEXT DEFAULT '',
		last_sender TEXT DEFAULT '',
		last_time DATETIME,
		last_kind TEXT DEFAULT 'text',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chat_participants (
		chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		PRIMARY KEY (chat_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		content TEXT NOT NULL,
		file_name TEXT DEFAULT '',
		ts INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_participants_user ON chat_participants(user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_room_ts ON messages(room_id, ts);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `id, username, email, password_hash, role, is_banned, is_online, last_seen, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	var idStr string
	var bannedInt, onlineInt int
	var lastSeen sql.NullTime

	err := row.Scan(
		&idStr,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&bannedInt,
		&onlineInt,
		&lastSeen,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	user.IsBanned = bannedInt == 1
	user.IsOnline = onlineInt == 1
	if lastSeen.Valid {
		t := lastSeen.Time
		user.LastSeen = &t
	}
	return user, nil
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash, role string) (*models.User, error) {
	id := uuid.New().String()
	now := time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, username, email, passwordHash, role, now, now)
	if err != nil {
		return nil, err
	}

	return s.GetUserByID(ctx, uuid.MustParse(id))
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String())
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// SearchUsers finds users whose username or email matches the query,
// case-insensitively.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + query + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE username LIKE ? COLLATE NOCASE OR email LIKE ? COLLATE NOCASE
		ORDER BY username
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectUsers(rows)
}

// ListUsers retrieves users with optional search and pagination, newest
// first. Returns the matching total for page calculation.
func (s *SQLiteStore) ListUsers(ctx context.Context, search string, limit, offset int) ([]models.User, int, error) {
	pattern := "%" + search + "%"

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users
		WHERE username LIKE ? COLLATE NOCASE OR email LIKE ? COLLATE NOCASE
	`, pattern, pattern).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE username LIKE ? COLLATE NOCASE OR email LIKE ? COLLATE NOCASE
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, pattern, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users, err := collectUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func collectUsers(rows *sql.Rows) ([]models.User, error) {
	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// SetUserBanned sets or clears the ban flag.
func (s *SQLiteStore) SetUserBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	bannedInt := 0
	if banned {
		bannedInt = 1
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_banned = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, bannedInt, id.String())
	return err
}

// SetUserOnline marks a user as online.
func (s *SQLiteStore) SetUserOnline(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_online = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, userID)
	return err
}

// SetUserOffline marks a user as offline and records when they were last
// seen.
func (s *SQLiteStore) SetUserOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_online = 0, last_seen = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, lastSeen, userID)
	return err
}

// CountUsers returns the total number of registered users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CountUsersSince returns the number of users created after the given time.
func (s *SQLiteStore) CountUsersSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE created_at >= ?`, since).Scan(&count)
	return count, err
}

// CreateChat creates a conversation with the given participants.
func (s *SQLiteStore) CreateChat(ctx context.Context, participants []uuid.UUID, isGroup bool, groupName string) (*models.Chat, error) {
	id := uuid.New().String()
	now := time.Now()

	isGroupInt := 0
	if isGroup {
		isGroupInt = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chats (id, is_group, group_name, last_content, last_time, last_kind, created_at, updated_at)
		VALUES (?, ?, ?, 'Draft', ?, 'text', ?, ?)
	`, id, isGroupInt, groupName, now, now, now)
	if err != nil {
		return nil, err
	}

	for _, p := range participants {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_participants (chat_id, user_id) VALUES (?, ?)
		`, id, p.String()); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetChat(ctx, id)
}

const chatColumns = `id, is_group, group_name, last_content, last_sender, last_time, last_kind, created_at, updated_at`

func scanChat(row interface{ Scan(...any) error }) (*models.Chat, error) {
	chat := &models.Chat{}
	var idStr string
	var isGroupInt int
	var lastTime sql.NullTime

	err := row.Scan(
		&idStr,
		&isGroupInt,
		&chat.GroupName,
		&chat.LastMessage.Content,
		&chat.LastMessage.SenderID,
		&lastTime,
		&chat.LastMessage.Kind,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	chat.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	chat.IsGroup = isGroupInt == 1
	if lastTime.Valid {
		chat.LastMessage.Time = lastTime.Time
	}
	return chat, nil
}

func (s *SQLiteStore) loadParticipants(ctx context.Context, chat *models.Chat) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM chat_participants WHERE chat_id = ?
	`, chat.ID.String())
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return err
		}
		chat.Participants = append(chat.Participants, id)
	}
	return rows.Err()
}

// GetChat retrieves a conversation by ID, including participants.
func (s *SQLiteStore) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = ?`, chatID)
	chat, err := scanChat(row)
	if err != nil || chat == nil {
		return chat, err
	}
	if err := s.loadParticipants(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// FindDirectChat finds the direct conversation between two users, if one
// exists. Creation is check-then-create: a concurrent pair of creations may
// briefly both succeed, which the system tolerates.
func (s *SQLiteStore) FindDirectChat(ctx context.Context, a, b uuid.UUID) (*models.Chat, error) {
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id FROM chats c
		JOIN chat_participants p1 ON p1.chat_id = c.id AND p1.user_id = ?
		JOIN chat_participants p2 ON p2.chat_id = c.id AND p2.user_id = ?
		WHERE c.is_group = 0
		LIMIT 1
	`, a.String(), b.String()).Scan(&idStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s.GetChat(ctx, idStr)
}

// ListChatsForUser retrieves all conversations a user participates in, most
// recently updated first.
func (s *SQLiteStore) ListChatsForUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chatColumns+` FROM chats
		WHERE id IN (SELECT chat_id FROM chat_participants WHERE user_id = ?)
		ORDER BY updated_at DESC
	`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.collectChats(ctx, rows)
}

// ListRecentChats retrieves the most recently updated conversations.
func (s *SQLiteStore) ListRecentChats(ctx context.Context, limit int) ([]models.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chatColumns+` FROM chats ORDER BY updated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.collectChats(ctx, rows)
}

func (s *SQLiteStore) collectChats(ctx context.Context, rows *sql.Rows) ([]models.Chat, error) {
	var chats []models.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *chat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range chats {
		if err := s.loadParticipants(ctx, &chats[i]); err != nil {
			return nil, err
		}
	}
	return chats, nil
}

// UpdateLastMessage sets the conversation's denormalized summary.
func (s *SQLiteStore) UpdateLastMessage(ctx context.Context, chatID string, last models.LastMessage) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE chats
		SET last_content = ?, last_sender = ?, last_time = ?, last_kind = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, last.Content, last.SenderID, last.Time, last.Kind, chatID)
	return err
}

// DeleteChat hard-deletes a conversation and cascades to its messages.
func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE room_id = ?`, chatID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID); err != nil {
		return err
	}

	return tx.Commit()
}

// CountChats returns the total number of conversations.
func (s *SQLiteStore) CountChats(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chats`).Scan(&count)
	return count, err
}

// AppendMessage persists a message. The caller assigns the identifier and
// timestamp; the record is immutable once written.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, sender_id, kind, content, file_name, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.RoomID, msg.SenderID, msg.Kind, msg.Content, msg.FileName, msg.Timestamp)
	return err
}

// ListMessages retrieves a room's full message history, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, sender_id, kind, content, file_name, ts
		FROM messages WHERE room_id = ? ORDER BY ts ASC, id ASC
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
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
