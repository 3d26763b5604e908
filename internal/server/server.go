// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the NEXUS HTTP API.
//
// Endpoints:
//   - POST   /chat                     - Chat (SSE stream or drained JSON)
//   - POST   /reset                    - Reset the session context
//   - GET    /health                   - Backend reachability
//   - GET    /models                   - Model registry with availability
//   - GET    /stats                    - Session and store statistics
//   - GET    /history                  - List conversations
//   - POST   /history                  - Create a conversation
//   - DELETE /history                  - Clear all history
//   - GET    /history/{id}             - Get a conversation with messages
//   - DELETE /history/{id}             - Delete a conversation
//   - GET    /history/search/{query}   - Full-text search
//   - GET    /export/{id}              - Export a conversation (markdown|json)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/nexus/internal/config"
	"github.com/jeranaias/nexus/internal/engine"
	"github.com/jeranaias/nexus/internal/logging"
	"github.com/jeranaias/nexus/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxQueryLength is the maximum length for a chat message to prevent DoS.
	MaxQueryLength = 100000

	// MaxRequestBodySize is the maximum request body size (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// Version is the API version string reported by the root endpoint.
	Version = "1.0.0"
)

// validRoles defines the set of acceptable message roles for history writes.
var validRoles = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
}

// ============================================================================
// SERVER
// ============================================================================

// Server serves the NEXUS HTTP API. It owns one engine (one chat session)
// plus the shared conversation store.
type Server struct {
	cfg    *config.Config
	engine *engine.Engine
	store  *storage.Store
	log    *logging.Logger

	mux    *http.ServeMux
	server *http.Server
	start  time.Time
}

// New creates a server around an engine and store.
func New(cfg *config.Config, eng *engine.Engine, store *storage.Store, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NewNop()
	}

	s := &Server{
		cfg:    cfg,
		engine: eng,
		store:  store,
		log:    log,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /models", s.handleModels)
	s.mux.HandleFunc("GET /stats", s.handleStats)

	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("POST /reset", s.handleReset)

	s.mux.HandleFunc("GET /history", s.handleListHistory)
	s.mux.HandleFunc("POST /history", s.handleCreateConversation)
	s.mux.HandleFunc("DELETE /history", s.handleClearHistory)
	s.mux.HandleFunc("GET /history/{id}", s.handleGetConversation)
	s.mux.HandleFunc("POST /history/{id}/message", s.handleAddMessage)
	s.mux.HandleFunc("DELETE /history/{id}", s.handleDeleteConversation)
	s.mux.HandleFunc("GET /history/search/{query}", s.handleSearchHistory)

	s.mux.HandleFunc("GET /export/{id}", s.handleExport)
}

// Handler returns the full middleware-wrapped handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = maxBodyMiddleware(h, MaxRequestBodySize)
	if s.cfg.Server.RateLimitRPS > 0 {
		h = rateLimitMiddleware(h, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.log)
	}
	h = loggingMiddleware(h, s.log)
	h = recoveryMiddleware(h, s.log)
	return h
}

// Run starts the server and blocks until ctx is cancelled or the listener
// fails. Shutdown is graceful with a bounded timeout.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: /chat streams for the full generation window.
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("api server listening", zap.String("addr", s.cfg.Server.Addr))
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		s.log.Info("api server shutting down")
		return s.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
