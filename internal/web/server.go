// Package web provides the HTTP server and API handlers for recordshelf.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr          string
	SessionSecret []byte
	FallbackOwner string
}

// Server is the HTTP server.
type Server struct {
	log      *slog.Logger
	router   chi.Router
	server   *http.Server
	handlers *Handlers
}

// NewServer creates the server and wires its routes.
func NewServer(cfg ServerConfig, log *slog.Logger, exchange Exchange, catalog CatalogService, ledgerSvc LedgerService) *Server {
	handlers := NewHandlers(log, exchange, catalog, ledgerSvc, cfg.SessionSecret, cfg.FallbackOwner)

	router := chi.NewRouter()
	s := &Server{
		log:      log,
		router:   router,
		handlers: handlers,
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// The handshake routes are the only unauthenticated surface; keep them
	// behind a per-IP limiter.
	authLimiter := newLimiterStore(rate.Every(time.Second), 5, 10*time.Minute)

	router.Group(func(r chi.Router) {
		r.Use(authLimiter.middleware)
		r.Get("/auth/provider/start", handlers.AuthStart)
		r.Get("/auth/provider/callback", handlers.AuthCallback)
	})

	router.Get("/auth/session", handlers.AuthSession)
	router.Get("/auth/logout", handlers.Logout)

	router.Get("/catalog", handlers.Catalog)
	router.Get("/catalog/sync", handlers.CatalogSync)

	router.Get("/plays", handlers.PlaysList)
	router.Post("/plays", handlers.PlaysRecord)
	router.Patch("/plays", handlers.PlaysSet)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		s.log.Info("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
