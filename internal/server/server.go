// Package server implements the dashboard query API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dwsmith1983/vidtrend/internal/analysis"
	"github.com/dwsmith1983/vidtrend/internal/server/handlers"
)

// Server is the query API server.
type Server struct {
	svc    *analysis.Service
	pinger handlers.Pinger
	runner handlers.Runner
	apiKey string
	logger *slog.Logger
	router chi.Router
	addr   string
	srv    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithAPIKey requires key in X-API-Key on every route but health.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithRunner exposes POST /api/runs backed by r.
func WithRunner(r handlers.Runner) Option {
	return func(s *Server) { s.runner = r }
}

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a new HTTP server.
func New(addr string, svc *analysis.Service, pinger handlers.Pinger, opts ...Option) *Server {
	s := &Server{
		svc:    svc,
		pinger: pinger,
		addr:   addr,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(APIKeyMiddleware(s.apiKey))
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	s.router = r
	s.registerRoutes(r)
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves HTTP requests until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("query API listening", "addr", s.addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
