package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/talkwire/talkwire/internal/metrics"
)

// TokenVerifier validates the bearer token presented at upgrade time and
// returns the authenticated user id.
type TokenVerifier interface {
	VerifyToken(token string) (userID string, err error)
}

// Handler upgrades HTTP requests to the live channel.
type Handler struct {
	hub        *Hub
	dispatcher *Dispatcher
	verifier   TokenVerifier
	upgrader   websocket.Upgrader
	logger     zerolog.Logger
}

// NewHandler creates the websocket upgrade handler. clientOrigin restricts
// upgrade origins; "*" allows any.
func NewHandler(hub *Hub, dispatcher *Dispatcher, verifier TokenVerifier, clientOrigin string, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		verifier:   verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if clientOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == clientOrigin
			},
		},
		logger: logger,
	}
}

// ServeHTTP authenticates the caller, upgrades the connection, and starts
// the client pumps. Identity is still announced over the channel via
// user_connected; the token only gates access.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token is required", http.StatusUnauthorized)
		return
	}
	if _, err := h.verifier.VerifyToken(token); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	metrics.ConnectionsOpened.Inc()

	client := NewClient(conn, h.hub, h.dispatcher, h.logger)
	client.Start()
}
