package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/talkwire/talkwire/internal/api/middleware"
	"github.com/talkwire/talkwire/internal/auth"
	"github.com/talkwire/talkwire/internal/handlers"
	"github.com/talkwire/talkwire/internal/store"
	"github.com/talkwire/talkwire/internal/ws"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(
	logger zerolog.Logger,
	h *handlers.Handler,
	tokens *auth.Manager,
	db store.DataStore,
	redisStore *store.RedisStore,
	wsHandler *ws.Handler,
	clientOrigin string,
) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (fails open without Redis)
	limiter := middleware.NewRateLimiter(redisStore, logger)
	r.Use(limiter.Middleware)

	// CORS
	allowedOrigins := []string{clientOrigin}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authmw := middleware.NewAuthMiddleware(tokens, db)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Post("/api/auth/register", h.Register)
	r.Post("/api/auth/login", h.Login)

	// Live channel (token validated inside the upgrade handler)
	r.Get("/ws", wsHandler.ServeHTTP)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth)

		r.Get("/api/users/search", h.SearchUsers)

		r.Get("/api/chat/{userId}", h.ListChats)
		r.Post("/api/chat", h.CreateChat)
		r.Get("/api/chat/messages/{roomId}", h.ListMessages)
		r.Post("/api/chat/read/{roomId}", h.MarkRead)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Get("/api/admin/stats", h.Stats)
			r.Get("/api/admin/users", h.ListUsers)
			r.Put("/api/admin/users/{id}/ban", h.ToggleBan)
			r.Get("/api/admin/chats", h.RecentChats)
			r.Delete("/api/admin/chats/{id}", h.DeleteChat)
		})
	})

	return r
}
