// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, routes,
// and the background machinery. Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - When the sync loop and notifier workers start and stop
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it:
// - Testable (we can create a test server without running main)
// - Reusable (multiple entry points could use the same server config)
// - Clean (main.go stays minimal — just parse config and start)
//
// DEPENDENCY INJECTION FLOW:
// main.go builds a Config from the environment and calls New(), which wires:
//
//	sqlite.DB → LookupService → ProfileHandler
//	sqlite.DB (cursor) + leaderboard.Client + notify.Pool → sync.Reconciler
//	auth.DiscordProvider + auth.TokenService → AuthHandler
//
// This is the "composition root" pattern — all dependencies are assembled in
// one place rather than scattered across the codebase.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/levelboard/internal/auth"
	"github.com/sakif/levelboard/internal/card"
	"github.com/sakif/levelboard/internal/handler"
	"github.com/sakif/levelboard/internal/leaderboard"
	"github.com/sakif/levelboard/internal/middleware"
	"github.com/sakif/levelboard/internal/notify"
	sqliteRepo "github.com/sakif/levelboard/internal/repository/sqlite"
	"github.com/sakif/levelboard/internal/service"
	"github.com/sakif/levelboard/internal/sync"
)

// Config holds server configuration.
// Using a struct for config (instead of individual parameters) makes it easy to:
// - Add new config options without changing function signatures
// - Pass config around as a single value
// - Load config from env vars in one place (main.go)
type Config struct {
	Port   int
	DBPath string // path to the SQLite cache file

	GuildID        string // Discord guild whose leaderboard is mirrored
	LeaderboardURL string // upstream API root; empty uses the default
	SyncInterval   time.Duration

	RootURL    string // public root of this service (links, OAuth callback)
	WebhookURL string // level-up webhook; empty disables notifications

	ClientID     string // Discord OAuth application credentials
	ClientSecret string
	JWTSecret    string
}

// authEnabled reports whether enough OAuth configuration is present to
// register the login routes. Partial credentials count as disabled.
func (c Config) authEnabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.JWTSecret != ""
}

// callbackURL is the redirect URI registered with the Discord application.
func (c Config) callbackURL() string {
	return strings.TrimSuffix(c.RootURL, "/") + "/oc"
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection, the notifier worker pool, and the
// reconciler goroutine. All three must be torn down in the right order on
// shutdown — see Start.
type Server struct {
	router     *chi.Mux
	config     Config
	logger     *slog.Logger
	db         *sqliteRepo.DB
	notifier   *notify.Pool
	reconciler *sync.Reconciler
}

// New creates a new Server with the given config.
//
// This is where the entire dependency chain is assembled. Each layer only
// receives what it needs: the service gets the repository interface (not the
// concrete sqlite.DB), the handler gets the service (not the repository).
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	cards := card.New()

	notifier := notify.NewPool(notify.Config{
		WebhookURL: cfg.WebhookURL,
		RootURL:    strings.TrimSuffix(cfg.RootURL, "/"),
	}, cards, logger)

	fetcher := leaderboard.New(cfg.LeaderboardURL, cfg.GuildID)

	reconciler := sync.New(fetcher, db, db, notifier, sync.Config{
		Interval: cfg.SyncInterval,
	}, logger)

	s := &Server{
		router:     chi.NewRouter(),
		config:     cfg,
		logger:     logger,
		db:         db,
		notifier:   notifier,
		reconciler: reconciler,
	}

	if err := s.setupRoutes(cards); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET /      → lookup page (HTML); ?id= shows a profile inline
// GET /api   → profile as JSON
// GET /card  → rendered rank card (SVG)
// GET /c     → alias for /card
// GET /o     → start Discord OAuth login
// GET /oc    → OAuth callback (only when auth is configured)
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers
// 3. Recoverer — catches panics and returns 500 instead of crashing
// 4. Logger — logs each request with timing info
// 5. OptionalAuth — attaches the session's Discord id, never blocks
func (s *Server) setupRoutes(cards *card.Renderer) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	lookups := service.NewLookupService(s.db, s.logger)
	profileHandler := handler.NewProfileHandler(lookups, cards, s.logger)

	if s.config.authEnabled() {
		tokens, err := auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
		discord := auth.NewDiscordProvider(
			s.config.ClientID,
			s.config.ClientSecret,
			s.config.callbackURL(),
			s.logger,
		)
		authHandler := handler.NewAuthHandler(discord, tokens, s.logger)

		// Every route is public; the session only supplies a default id.
		s.router.Use(auth.OptionalAuth(tokens))
		s.router.Get("/o", authHandler.HandleLogin)
		s.router.Get("/oc", authHandler.HandleCallback)
	} else {
		s.logger.Warn("OAuth not configured, login routes disabled")
	}

	s.router.Get("/", profileHandler.HandleIndex)
	s.router.Get("/api", profileHandler.HandleAPI)
	s.router.Get("/card", profileHandler.HandleCard)
	s.router.Get("/c", profileHandler.HandleCard)

	return nil
}

// startBackground launches the notifier workers and the reconciler loop.
//
// The returned stop function tears them down in dependency order: cancel the
// reconciler's context, WAIT for its goroutine to exit, then stop the
// notifier. The wait is what makes the order real — without it a tick still
// in flight could Dispatch onto the notifier's already-closed queue, which
// panics. Safe to call stop more than once.
func (s *Server) startBackground() (stop func()) {
	if s.notifier.Enabled() {
		s.notifier.Start()
	} else {
		s.logger.Warn("no webhook configured, level-up notifications disabled")
	}

	// The reconciler runs for the server's lifetime; canceling this context
	// is how shutdown stops it.
	syncCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.reconciler.Run(syncCtx)
	}()

	return func() {
		cancel()
		<-done
		s.notifier.Stop()
	}
}

// Start starts the HTTP server, the notifier workers, and the sync loop, and
// handles graceful shutdown.
//
// GRACEFUL SHUTDOWN ORDER:
// 1. Stop accepting new HTTP connections, wait for in-flight requests (30s)
// 2. Cancel the reconciler's context and wait for its goroutine to exit —
//    after this, nothing produces into the notifier queue
// 3. Stop the notifier — drains queued deliveries, waits for workers
// 4. Close the database (flushes WAL, releases the file lock)
//
// The order matters: the notifier must outlive the reconciler (its producer),
// and the database must outlive both.
func (s *Server) Start() error {
	defer s.db.Close()

	stopBackground := s.startBackground()
	defer stopBackground()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("guild", s.config.GuildID),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	stopBackground()
	s.logger.Info("server stopped gracefully")

	return nil
}
