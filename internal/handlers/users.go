package handlers

import (
	"net/http"
	"time"

	"github.com/talkwire/talkwire/internal/models"
)

// UserResponse is the public view of a user in search and listing results.
// Online status reflects the live presence registry, not the persisted flag,
// so a freshly crashed connection does not linger as online.
type UserResponse struct {
	ID       string     `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     string     `json:"role"`
	IsBanned bool       `json:"is_banned"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
	Created  time.Time  `json:"created_at"`
}

func (h *Handler) userResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:       u.ID.String(),
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		IsBanned: u.IsBanned,
		IsOnline: h.presence.Online(u.ID.String()),
		LastSeen: u.LastSeen,
		Created:  u.CreatedAt,
	}
}

// SearchUsers handles user discovery by username or email.
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		h.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	users, err := h.db.SearchUsers(r.Context(), query, 50)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	results := make([]UserResponse, len(users))
	for i := range users {
		results[i] = h.userResponse(&users[i])
	}

	h.JSON(w, http.StatusOK, results)
}
