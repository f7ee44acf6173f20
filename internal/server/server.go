// Package server wires handlers, middleware, and routes, and owns the HTTP
// server lifecycle. This is the composition root: every dependency in the
// app is constructed here (or in main) and injected downward — the handler
// never touches the database, the service never touches HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/avolkov/todo-atlas/internal/atlas"
	"github.com/avolkov/todo-atlas/internal/auth"
	"github.com/avolkov/todo-atlas/internal/handler"
	"github.com/avolkov/todo-atlas/internal/middleware"
	sqliteRepo "github.com/avolkov/todo-atlas/internal/repository/sqlite"
	"github.com/avolkov/todo-atlas/internal/service"
)

// Config holds everything the server needs to start.
type Config struct {
	Port         int
	DatabaseURL  string // store connection string (SQLite path)
	JWTSecret    string // HMAC secret for locally-issued tokens
	AtlasBaseURL string // identity provider API root
}

// Server owns the router and the database connection; the connection is
// closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New builds the full dependency graph:
//
//	sqlite.DB → repositories → services → handlers → routes
//
// It fails (loudly, before serving anything) if the store is unreachable
// or the token secret is unusable.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	s.setupRoutes(tokens)

	return s, nil
}

// setupRoutes configures middleware and the route table.
//
//	GET  /                                → service banner
//	POST /api/register/local              → local account creation
//	POST /api/register/oauth              → external identity reconciliation
//	POST /api/login                       → local login, returns access token
//	GET  /proxy/identity-provider/user/me → provider token bridge
//	GET  /api/me                          → current user        (local token)
//	CRUD /api/tasks[/{id}]                → owner-scoped tasks  (local token)
func (s *Server) setupRoutes(tokens *auth.TokenService) {
	passwords := auth.NewPasswordService()
	atlasClient := atlas.NewClient(s.config.AtlasBaseURL)

	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	taskService := service.NewTaskService(s.db, s.logger)

	authHandler := handler.NewAuthHandler(authService, atlasClient, tokens, s.logger)
	taskHandler := handler.NewTaskHandler(taskService, s.logger)

	// Order matters: RequestID first so the logger can report it,
	// Recoverer before anything that might panic.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.CORS)

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Todo List API"}`))
	})

	s.router.Get("/proxy/identity-provider/user/me", authHandler.HandleProviderMe)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/register/local", authHandler.HandleRegisterLocal)
		r.Post("/register/oauth", authHandler.HandleRegisterOAuth)
		r.Post("/login", authHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Post("/tasks", taskHandler.HandleCreate)
			r.Get("/tasks", taskHandler.HandleList)
			r.Put("/tasks/{id}", taskHandler.HandleUpdate)
			r.Delete("/tasks/{id}", taskHandler.HandleDelete)
		})
	})
}

// Router exposes the configured router; used by tests to drive the full
// stack through httptest without a listening socket.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, let in-flight requests finish
// (30s budget), close the database.
func (s *Server) Start() error {
	defer s.db.Close()

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
			slog.String("database", s.config.DatabaseURL),
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
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
