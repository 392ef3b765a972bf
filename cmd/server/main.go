package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/talkwire/talkwire/internal/api"
	"github.com/talkwire/talkwire/internal/auth"
	"github.com/talkwire/talkwire/internal/config"
	"github.com/talkwire/talkwire/internal/handlers"
	"github.com/talkwire/talkwire/internal/store"
	"github.com/talkwire/talkwire/internal/ws"
)

// presenceRecorder persists presence changes to the durable store and
// mirrors them into Redis for the admin dashboard.
type presenceRecorder struct {
	db    store.DataStore
	redis *store.RedisStore
}

func (p presenceRecorder) SetUserOnline(ctx context.Context, userID string) error {
	if p.redis != nil {
		_ = p.redis.MarkOnline(ctx, userID)
	}
	return p.db.SetUserOnline(ctx, userID)
}

func (p presenceRecorder) SetUserOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	if p.redis != nil {
		_ = p.redis.MarkOffline(ctx, userID)
	}
	return p.db.SetUserOffline(ctx, userID, lastSeen)
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize the durable store: PostgreSQL when configured, SQLite
	// otherwise.
	var db store.DataStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pgStore.Close()
		logger.Info().Msg("connected to PostgreSQL")
		db = pgStore
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		defer sqliteStore.Close()
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite")
		db = sqliteStore
	}

	// Initialize Redis store (optional)
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	tokens := auth.NewManager(cfg.JWTSecret, 0)

	// Wire the live channel core
	hub := ws.NewHub(logger)
	presence := ws.NewPresence(hub, presenceRecorder{db: db, redis: redisStore}, logger)
	rooms := ws.NewRooms(hub, logger)
	typing := ws.NewTyping(rooms)

	var unread ws.UnreadCounter
	if redisStore != nil {
		unread = redisStore
	}
	ingest := ws.NewIngest(db, unread, rooms, logger)

	dispatcher := ws.NewDispatcher(presence, rooms, typing, ingest, logger)
	hub.OnDisconnect = func(connID string) {
		presence.Release(connID)
		rooms.LeaveAll(connID)
	}

	wsHandler := ws.NewHandler(hub, dispatcher, tokens, cfg.ClientOrigin, logger)

	// Create router
	h := handlers.NewHandler(db, redisStore, tokens, presence, logger)
	router := api.NewRouter(logger, h, tokens, db, redisStore, wsHandler, cfg.ClientOrigin)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting Talkwire server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
