// Package main is the entry point for the levelboard server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal — its job is to:
// 1. Read configuration (from env vars)
// 2. Create dependencies (logger)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/sync, etc.).
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points.
// This project has two: cmd/server (the service) and cmd/lookup (a small
// query client). Each gets its own directory with its own main.go.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sakif/levelboard/internal/server"
)

func main() {
	// slog.NewTextHandler outputs human-readable logs to the terminal.
	// LOG_LEVEL=debug enables per-page sync logging; the default Info level
	// keeps the steady-state output to one line per request.
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	// PORT defaults to 8080.
	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	// GUILD_ID selects which Discord guild's leaderboard to mirror. There is
	// no sensible default — without it the sync loop has nothing to fetch.
	guildID := os.Getenv("GUILD_ID")
	if guildID == "" {
		logger.Error("GUILD_ID not set")
		os.Exit(1)
	}

	// ROOT is the public base URL of this service, used for links in webhook
	// messages and as the OAuth redirect base.
	rootURL := os.Getenv("ROOT")
	if rootURL == "" {
		rootURL = "http://localhost:" + strconv.Itoa(port)
	}

	// SYNC_INTERVAL is the pause between page syncs, e.g. "3s" or "500ms".
	var syncInterval time.Duration
	if intervalStr := os.Getenv("SYNC_INTERVAL"); intervalStr != "" {
		var err error
		syncInterval, err = time.ParseDuration(intervalStr)
		if err != nil {
			logger.Error("invalid SYNC_INTERVAL value", slog.String("value", intervalStr))
			os.Exit(1)
		}
	}

	// DB_PATH defaults to data/levelboard.db; the directory is created if
	// missing (like `mkdir -p`).
	dbPath := "data/levelboard.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(dbPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// HOOK_URL is the Discord webhook receiving level-up messages. Optional —
	// without it the server runs in read-only mirror mode.
	hookURL := os.Getenv("HOOK_URL")
	if hookURL == "" {
		logger.Warn("HOOK_URL not set — level-up notifications are disabled")
	}

	// CLIENT_ID / CLIENT_SECRET are the Discord OAuth application credentials;
	// JWT_SECRET signs the session cookies. Use:
	//   JWT_SECRET=$(openssl rand -hex 32)
	// If any is unset, login is disabled (server still starts, OAuth routes
	// not registered, lookups keep working).
	clientID := os.Getenv("CLIENT_ID")
	clientSecret := os.Getenv("CLIENT_SECRET")
	jwtSecret := os.Getenv("JWT_SECRET")
	if clientID == "" || clientSecret == "" || jwtSecret == "" {
		logger.Warn("CLIENT_ID/CLIENT_SECRET/JWT_SECRET not fully set — login is disabled")
	}

	cfg := server.Config{
		Port:           port,
		DBPath:         dbPath,
		GuildID:        guildID,
		LeaderboardURL: os.Getenv("LEADERBOARD_URL"), // empty uses the default upstream
		SyncInterval:   syncInterval,
		RootURL:        rootURL,
		WebhookURL:     hookURL,
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		JWTSecret:      jwtSecret,
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
