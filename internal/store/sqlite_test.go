package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkwire/talkwire/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func createTestUser(t *testing.T, s *SQLiteStore, username, email string) *models.User {
	t.Helper()
	user, err := s.CreateUser(context.Background(), username, email, "hash", "user")
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func TestUserLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, s, "alice", "alice@example.com")
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "user", user.Role)
	assert.False(t, user.IsBanned)
	assert.Nil(t, user.LastSeen)

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, user.ID, byEmail.ID)

	missing, err := s.GetUserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = s.GetUserByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDuplicateEmailRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createTestUser(t, s, "alice", "alice@example.com")
	_, err := s.CreateUser(ctx, "alice2", "alice@example.com", "hash", "user")
	assert.Error(t, err)
}

func TestSearchUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createTestUser(t, s, "alice", "alice@example.com")
	createTestUser(t, s, "Alicia", "alicia@example.com")
	createTestUser(t, s, "bob", "bob@example.com")

	results, err := s.SearchUsers(ctx, "ali", 50)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = s.SearchUsers(ctx, "BOB", 50)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bob", results[0].Username)
}

func TestListUsersPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createTestUser(t, s, "alice", "alice@example.com")
	createTestUser(t, s, "bob", "bob@example.com")
	createTestUser(t, s, "carol", "carol@example.com")

	users, total, err := s.ListUsers(ctx, "", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, users, 2)

	users, total, err = s.ListUsers(ctx, "", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, users, 1)
}

func TestBanAndPresenceFlags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, s, "alice", "alice@example.com")

	require.NoError(t, s.SetUserBanned(ctx, user.ID, true))
	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsBanned)

	require.NoError(t, s.SetUserOnline(ctx, user.ID.String()))
	got, err = s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOnline)

	lastSeen := time.Now()
	require.NoError(t, s.SetUserOffline(ctx, user.ID.String(), lastSeen))
	got, err = s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsOnline)
	require.NotNil(t, got.LastSeen)
	assert.WithinDuration(t, lastSeen, *got.LastSeen, time.Second)
}

func TestFindOrCreateDirectChat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, s, "alice", "alice@example.com")
	bob := createTestUser(t, s, "bob", "bob@example.com")

	found, err := s.FindDirectChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	chat, err := s.CreateChat(ctx, []uuid.UUID{alice.ID, bob.ID}, false, "")
	require.NoError(t, err)
	require.NotNil(t, chat)
	assert.Len(t, chat.Participants, 2)
	assert.True(t, chat.HasParticipant(alice.ID))
	assert.True(t, chat.HasParticipant(bob.ID))
	assert.Equal(t, "Draft", chat.LastMessage.Content)

	// Both participant orders resolve to the same conversation.
	found, err = s.FindDirectChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, chat.ID, found.ID)

	found, err = s.FindDirectChat(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, chat.ID, found.ID)
}

func TestListChatsForUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, s, "alice", "alice@example.com")
	bob := createTestUser(t, s, "bob", "bob@example.com")
	carol := createTestUser(t, s, "carol", "carol@example.com")

	_, err := s.CreateChat(ctx, []uuid.UUID{alice.ID, bob.ID}, false, "")
	require.NoError(t, err)
	_, err = s.CreateChat(ctx, []uuid.UUID{bob.ID, carol.ID}, false, "")
	require.NoError(t, err)

	chats, err := s.ListChatsForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	chats, err = s.ListChatsForUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, chats, 2)
}

func TestUpdateLastMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, s, "alice", "alice@example.com")
	bob := createTestUser(t, s, "bob", "bob@example.com")
	chat, err := s.CreateChat(ctx, []uuid.UUID{alice.ID, bob.ID}, false, "")
	require.NoError(t, err)

	last := models.LastMessage{
		Content:  "see you there",
		SenderID: alice.ID.String(),
		Time:     time.Now(),
		Kind:     models.KindText,
	}
	require.NoError(t, s.UpdateLastMessage(ctx, chat.ID.String(), last))

	got, err := s.GetChat(ctx, chat.ID.String())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "see you there", got.LastMessage.Content)
	assert.Equal(t, alice.ID.String(), got.LastMessage.SenderID)
}

func TestMessageHistoryOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room := uuid.New().String()
	for i, id := range []string{"01A", "01B", "01C"} {
		require.NoError(t, s.AppendMessage(ctx, &models.Message{
			ID:        id,
			RoomID:    room,
			SenderID:  "u1",
			Kind:      models.KindText,
			Content:   "msg",
			Timestamp: int64(1000 + i),
		}))
	}

	messages, err := s.ListMessages(ctx, room)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "01A", messages[0].ID)
	assert.Equal(t, "01C", messages[2].ID)

	empty, err := s.ListMessages(ctx, "no-such-room")
	require.NoError(t, err)
	assert.Empty(t, empty)

	count, err := s.CountMessages(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestDeleteChatRemovesMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, s, "alice", "alice@example.com")
	bob := createTestUser(t, s, "bob", "bob@example.com")
	chat, err := s.CreateChat(ctx, []uuid.UUID{alice.ID, bob.ID}, false, "")
	require.NoError(t, err)

	require.NoError(t, s.AppendMessage(ctx, &models.Message{
		ID:        "01X",
		RoomID:    chat.ID.String(),
		SenderID:  alice.ID.String(),
		Kind:      models.KindText,
		Content:   "hi",
		Timestamp: time.Now().UnixMilli(),
	}))

	require.NoError(t, s.DeleteChat(ctx, chat.ID.String()))

	got, err := s.GetChat(ctx, chat.ID.String())
	require.NoError(t, err)
	assert.Nil(t, got)

	messages, err := s.ListMessages(ctx, chat.ID.String())
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestCorruptUserIDReturnsError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash)
		VALUES ('not-a-uuid', 'x', 'x@example.com', 'h')
	`)
	require.NoError(t, err)

	user, err := s.GetUserByEmail(ctx, "x@example.com")
	assert.Error(t, err)
	assert.Nil(t, user)
}

func TestCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createTestUser(t, s, "alice", "alice@example.com")
	createTestUser(t, s, "bob", "bob@example.com")

	users, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, users)

	recent, err := s.CountUsersSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, recent)

	none, err := s.CountUsersSince(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 0, none)

	chats, err := s.CountChats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, chats)
}
