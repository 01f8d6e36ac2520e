// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and routes.
// It decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	Server.New() creates: sqlite.DB → AuthService, PostService → handlers
//	                      storage.Disk → AuthHandler (avatars)
//
// This is the "composition root" pattern — all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"

	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/handler"
	"github.com/sakif/microblog/internal/metrics"
	"github.com/sakif/microblog/internal/middleware"
	sqliteRepo "github.com/sakif/microblog/internal/repository/sqlite"
	"github.com/sakif/microblog/internal/service"
	"github.com/sakif/microblog/internal/storage"
)

// Config holds server configuration. cmd/microblog fills it from the
// environment and flags.
type Config struct {
	Port   int
	DBPath string

	JWTSecret  string
	SessionTTL time.Duration
	// SessionKey signs the flash-message cookie. A random key is generated
	// when it is empty, so pending messages do not survive a restart.
	SessionKey    string
	SecureCookies bool

	UploadDir       string
	EnforceNonEmpty bool

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection (db). It is closed when Start
// returns, or by Close for servers that are never started (tests).
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a new Server with the given config.
//
// DEPENDENCY INJECTION & WIRING:
//  1. Create the database connection (sqlite.New)
//  2. Create the token, password and avatar-storage utilities
//  3. Create the services with the DB
//  4. Create the handlers with the services and wire them to routes
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Set up middleware and routes
	if err := s.setupRoutes(); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /metrics                    → Prometheus metrics
// GET    /uploads/*                  → uploaded avatars
// GET    /auth/github/login          → GitHub OAuth (when configured)
// GET    /auth/github/callback
//
// POST   /api/auth/register          → JSON API, see handler.AuthHandler
// POST   /api/auth/login
// POST   /api/auth/logout
// GET    /api/me                     [session]
// POST   /api/me/avatar              [session]
// GET    /api/feed                   [session]
// POST   /api/posts                  [session]
// GET    /api/posts/{id}             [session]
// PUT    /api/posts/{id}             [session]
// DELETE /api/posts/{id}             [session]
// POST   /api/posts/{id}/comments    [session]
// POST   /api/posts/{id}/reactions   [session]
//
// GET    /  /login  /signup          → form routes, see handler.WebHandler
// POST   /login  /signup
// GET    /logout
// GET    /dashboard                  [session]
// POST   /add  /edit/{id}  /delete/{id}  /comment/{id}   [session]
// GET    /react/{id}/{emoji}         [session]
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — extracts real client IP from proxy headers
// 3. Logger — logs each request with timing info and the request ID
// 4. Metrics — counts requests per route pattern
// 5. Recoverer — catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes() error {
	cfg := s.config

	// === Utilities ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	avatars, err := storage.NewDisk(cfg.UploadDir, "/uploads")
	if err != nil {
		return fmt.Errorf("creating avatar storage: %w", err)
	}

	sessionKey := []byte(cfg.SessionKey)
	if len(sessionKey) == 0 {
		s.logger.Warn("SESSION_KEY not set; using a random key for flash messages")
		sessionKey = securecookie.GenerateRandomKey(32)
	}
	flashes, err := handler.NewFlashes(sessionKey, cfg.SecureCookies, s.logger)
	if err != nil {
		return fmt.Errorf("creating flash store: %w", err)
	}

	var github *auth.GitHubProvider
	if cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL)
	}

	// === Services ===
	policy := service.Policy{EnforceNonEmpty: cfg.EnforceNonEmpty}
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), policy, s.logger)
	postService := service.NewPostService(s.db, policy, s.logger)

	// === Handlers ===
	cookies := handler.Cookies{TTL: tokens.TTL(), Secure: cfg.SecureCookies}
	authHandler := handler.NewAuthHandler(authService, avatars, github, cookies, flashes, s.logger)
	postHandler := handler.NewPostHandler(postService, s.logger)
	webHandler := handler.NewWebHandler(authService, postService, cookies, flashes, github != nil, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)
	s.router.Use(chimiddleware.Recoverer)

	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	// http.StripPrefix removes "/uploads/" so GET /uploads/x.png serves {UploadDir}/x.png
	fileServer := http.FileServer(http.Dir(avatars.Dir()))
	s.router.Handle("/uploads/*", http.StripPrefix("/uploads/", fileServer))

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	}

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(tokens, auth.DenyJSON))

			r.Get("/me", authHandler.HandleMe)
			r.Post("/me/avatar", authHandler.HandleAvatar)

			r.Get("/feed", postHandler.HandleFeed)
			r.Post("/posts", postHandler.HandleCreate)
			r.Get("/posts/{id}", postHandler.HandleGet)
			r.Put("/posts/{id}", postHandler.HandleUpdate)
			r.Delete("/posts/{id}", postHandler.HandleDelete)
			r.Post("/posts/{id}/comments", postHandler.HandleComment)
			r.Post("/posts/{id}/reactions", postHandler.HandleReact)
		})
	})

	// === Web Routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalSession(tokens))
		r.Get("/", webHandler.HandleHome)
	})
	s.router.Get("/login", webHandler.HandleLoginPage)
	s.router.Get("/signup", webHandler.HandleLoginPage)
	s.router.Post("/login", webHandler.HandleLogin)
	s.router.Post("/signup", webHandler.HandleSignup)
	s.router.Get("/logout", webHandler.HandleLogout)

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(tokens, http.HandlerFunc(webHandler.Deny)))

		r.Get("/dashboard", webHandler.HandleDashboard)
		r.Post("/add", webHandler.HandleAdd)
		r.Post("/edit/{id}", webHandler.HandleEdit)
		r.Post("/delete/{id}", webHandler.HandleDelete)
		r.Post("/comment/{id}", webHandler.HandleComment)
		r.Get("/react/{id}/{emoji}", webHandler.HandleReact)
	})

	return nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start closes it itself.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	// Ensure the database is closed when the server stops.
	defer s.db.Close()

	// Create the HTTP server with sensible timeouts
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	// Start the server in a goroutine (so it doesn't block)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("github", s.config.GitHubEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		// Server failed to start
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		// Received shutdown signal
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give in-flight requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
