package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// StatsResponse represents the admin dashboard stats.
type StatsResponse struct {
	TotalUsers    int64 `json:"totalUsers"`
	TotalMessages int64 `json:"totalMessages"`
	ActiveChats   int64 `json:"activeChats"`
	NewUsers      int64 `json:"newUsers"` // created in the last 7 days
	OnlineUsers   int   `json:"onlineUsers"`
}

// UserListResponse represents the paginated admin user listing.
type UserListResponse struct {
	Users       []UserResponse `json:"users"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
}

// Stats handles the admin dashboard stats endpoint.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	totalUsers, err := h.db.CountUsers(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	totalMessages, err := h.db.CountMessages(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	activeChats, err := h.db.CountChats(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	newUsers, err := h.db.CountUsersSince(r.Context(), time.Now().AddDate(0, 0, -7))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalUsers:    totalUsers,
		TotalMessages: totalMessages,
		ActiveChats:   activeChats,
		NewUsers:      newUsers,
		OnlineUsers:   len(h.presence.OnlineUsers()),
	})
}

// ListUsers handles the paginated admin user listing with optional search.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	limit := 10
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	users, total, err := h.db.ListUsers(r.Context(), search, limit, (page-1)*limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	results := make([]UserResponse, len(users))
	for i := range users {
		results[i] = h.userResponse(&users[i])
	}

	totalPages := (total + limit - 1) / limit

	h.JSON(w, http.StatusOK, UserListResponse{
		Users:       results,
		TotalPages:  totalPages,
		CurrentPage: page,
	})
}

// ToggleBan flips a user's ban flag. Admin accounts cannot be banned.
func (h *Handler) ToggleBan(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")

	id, err := uuid.Parse(idStr)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}

	user, err := h.db.GetUserByID(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}
	if user.IsAdmin() {
		h.Error(w, http.StatusBadRequest, "cannot ban an admin")
		return
	}

	banned := !user.IsBanned
	if err := h.db.SetUserBanned(r.Context(), id, banned); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	action := "unbanned"
	if banned {
		action = "banned"
	}
	user.IsBanned = banned

	h.JSON(w, http.StatusOK, map[string]any{
		"message": "User " + action + " successfully",
		"user":    h.userResponse(user),
	})
}

// RecentChats handles the admin listing of recent conversations.
func (h *Handler) RecentChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.db.ListRecentChats(r.Context(), 20)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	results := make([]ChatResponse, len(chats))
	for i := range chats {
		results[i] = h.chatResponse(r, &chats[i], "")
	}

	h.JSON(w, http.StatusOK, results)
}

// DeleteChat hard-deletes a conversation and all its messages.
func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")

	if _, err := uuid.Parse(idStr); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid chat ID format")
		return
	}

	if err := h.db.DeleteChat(r.Context(), idStr); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to delete chat")
		return
	}

	if h.redis != nil {
		if err := h.redis.DeleteUnread(r.Context(), idStr); err != nil {
			h.logger.Warn().Err(err).Str("chat_id", idStr).Msg("failed to clear unread counters")
		}
	}

	h.JSON(w, http.StatusOK, map[string]string{"message": "Chat deleted"})
}
