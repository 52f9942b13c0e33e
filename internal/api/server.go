// Package api provides the HTTP REST API for the chess analysis service.
//
//	POST /api/chat                 →  synchronous chat (genkit.Handler)
//	POST /api/chat/stream          →  streaming chat (SSE)
//	POST /api/analyze/player       →  one-shot player analysis
//	POST /api/analyze/pgn          →  one-shot game analysis
//	POST /api/analyze/recent       →  one-shot recent-games analysis
//	POST /api/knowledge/documents  →  store a knowledge document
//	POST /api/knowledge/search     →  semantic knowledge search
//	GET  /api/sessions             →  list sessions
//	POST /api/sessions             →  create session
//	GET  /api/sessions/{id}        →  fetch session
//	DELETE /api/sessions/{id}      →  delete session
//	GET  /health, GET /ready       →  probes
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gambitlabs/gambit/internal/chat"
	"github.com/gambitlabs/gambit/internal/log"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8400"

	// ShutdownTimeout is the maximum wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against Slowloris-style clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is generous because analysis responses stream for
	// as long as the model keeps producing chunks.
	WriteTimeout = 5 * time.Minute

	// IdleTimeout applies to keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Config collects the server's dependencies.
type Config struct {
	Flow        *chat.Flow
	Runner      AnalysisRunner
	Sessions    SessionManager
	Knowledge   KnowledgeBase
	DB          Pinger
	Logger      log.Logger
	CORSOrigins []string
}

// Server is the HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
	cors   []string
}

// NewServer creates a server with all routes registered.
func NewServer(cfg Config) *Server {
	mux := http.NewServeMux()

	NewHealthHandler(cfg.DB, cfg.Logger).RegisterRoutes(mux)
	NewChatHandler(cfg.Flow, cfg.Logger).RegisterRoutes(mux)
	NewAnalysisHandler(cfg.Runner, cfg.Sessions, cfg.Logger).RegisterRoutes(mux)
	NewKnowledgeHandler(cfg.Knowledge, cfg.Logger).RegisterRoutes(mux)
	NewSessionHandler(cfg.Sessions, cfg.Logger).RegisterRoutes(mux)

	return &Server{mux: mux, logger: cfg.Logger, cors: cfg.CORSOrigins}
}

// Handler returns the handler with middleware applied.
// Order: recovery → logging → CORS → routes.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		corsMiddleware(s.cors),
	)
}

// Run starts the server and blocks until ctx is canceled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
