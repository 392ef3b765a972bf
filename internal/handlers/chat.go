package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/talkwire/talkwire/internal/api/middleware"
	"github.com/talkwire/talkwire/internal/metrics"
	"github.com/talkwire/talkwire/internal/models"
)

// ChatResponse represents a conversation in API responses, with participants
// resolved to their public views and the caller's unread count attached.
type ChatResponse struct {
	ID           string             `json:"id"`
	Participants []UserResponse     `json:"participants"`
	IsGroup      bool               `json:"is_group"`
	GroupName    string             `json:"group_name,omitempty"`
	LastMessage  models.LastMessage `json:"last_message"`
	Unread       int64              `json:"unread"`
}

// CreateChatRequest represents the find-or-create direct chat request.
type CreateChatRequest struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

func (h *Handler) chatResponse(r *http.Request, chat *models.Chat, forUser string) ChatResponse {
	resp := ChatResponse{
		ID:          chat.ID.String(),
		IsGroup:     chat.IsGroup,
		GroupName:   chat.GroupName,
		LastMessage: chat.LastMessage,
	}

	for _, pid := range chat.Participants {
		user, err := h.db.GetUserByID(r.Context(), pid)
		if err != nil || user == nil {
			continue
		}
		resp.Participants = append(resp.Participants, h.userResponse(user))
	}

	if h.redis != nil && forUser != "" {
		if counts, err := h.redis.GetUnreadCounts(r.Context(), resp.ID); err == nil {
			resp.Unread = counts[forUser]
		}
	}

	return resp
}

// ListChats handles fetching all conversations for a user, most recently
// active first.
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	userIDStr := chi.URLParam(r, "userId")

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}

	chats, err := h.db.ListChatsForUser(r.Context(), userID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	results := make([]ChatResponse, len(chats))
	for i := range chats {
		results[i] = h.chatResponse(r, &chats[i], userIDStr)
	}

	h.JSON(w, http.StatusOK, results)
}

// CreateChat finds or creates the direct conversation between two users.
// Creation is check-then-create: two simultaneous requests for the same pair
// may both create a conversation, which is tolerated rather than serialized.
func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	senderID, err := uuid.Parse(req.SenderID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid senderId format")
		return
	}
	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid receiverId format")
		return
	}
	if senderID == receiverID {
		h.Error(w, http.StatusBadRequest, "cannot open a chat with yourself")
		return
	}

	chat, err := h.db.FindDirectChat(r.Context(), senderID, receiverID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	if chat == nil {
		chat, err = h.db.CreateChat(r.Context(), []uuid.UUID{senderID, receiverID}, false, "")
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to create chat")
			return
		}
		metrics.ChatsCreated.Inc()
	}

	h.JSON(w, http.StatusOK, h.chatResponse(r, chat, req.SenderID))
}

// ListMessages handles fetching a room's message history, oldest first.
// Every message whose live broadcast has been observed is guaranteed to be
// present, since persistence strictly precedes broadcast.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	messages, err := h.db.ListMessages(r.Context(), roomID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	if messages == nil {
		messages = []models.Message{}
	}
	h.JSON(w, http.StatusOK, messages)
}

// MarkRead resets the caller's unread counter for a conversation.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	roomID := chi.URLParam(r, "roomId")

	if h.redis != nil {
		if err := h.redis.ResetUnread(r.Context(), roomID, user.ID.String()); err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to reset unread count")
			return
		}
	}

	h.JSON(w, http.StatusOK, map[string]string{"message": "marked read"})
}
