// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/nexus/internal/engine"
	"github.com/jeranaias/nexus/internal/export"
	"github.com/jeranaias/nexus/internal/storage"
)

// ============================================================================
// REQUEST/RESPONSE TYPES
// ============================================================================

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
	// Stream selects SSE delivery. Defaults to true like the web client.
	Stream *bool `json:"stream,omitempty"`
}

// CreateConversationRequest is the body of POST /history.
type CreateConversationRequest struct {
	Title string `json:"title"`
	Model string `json:"model,omitempty"`
}

// AddMessageRequest is the body of POST /history/{id}/message.
type AddMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ============================================================================
// CORE HANDLERS
// ============================================================================

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"name":    "NEXUS API",
		"version": Version,
		"status":  "operational",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.engine.CheckStatus(r.Context())

	// Offline is a valid answer, not a server failure.
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	status := s.engine.CheckStatus(r.Context())

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"models":       s.engine.Router().Models(),
		"status":       status.Status,
		"availability": status.ModelsAvailable,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.engine.Stats()

	payload := map[string]interface{}{
		"session":        stats,
		"uptime_seconds": int(time.Since(s.start).Seconds()),
	}

	if s.store != nil {
		convs, msgs, err := s.store.Stats(r.Context())
		if err == nil {
			payload["stored_conversations"] = convs
			payload["stored_messages"] = msgs
		}
	}

	s.writeJSON(w, http.StatusOK, payload)
}

// ============================================================================
// CHAT HANDLERS
// ============================================================================

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if len(req.Message) > MaxQueryLength {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("message exceeds maximum length of %d", MaxQueryLength))
		return
	}

	stream := true
	if req.Stream != nil {
		stream = *req.Stream
	}

	if stream {
		s.streamChat(w, r, req.Message)
		return
	}

	answer, err := s.engine.Ask(r.Context(), req.Message)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, answer)
}

// streamChat forwards engine events as server-sent events.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, message string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for ev := range s.engine.Generate(r.Context(), message) {
		data, err := json.Marshal(ev)
		if err != nil {
			s.log.Error("event marshal failed", zap.Error(err))
			continue
		}

		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.engine.Reset()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "conversation reset"})
}

// ============================================================================
// HISTORY HANDLERS
// ============================================================================

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	convs, err := s.store.ListConversations(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": convs})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	id, err := s.store.CreateConversation(r.Context(), req.Title, req.Model)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]int64{"conversation_id": id})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	conv, err := s.store.GetConversation(r.Context(), id)
	if errors.Is(err, storage.ErrConversationNotFound) {
		s.writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req AddMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validRoles[req.Role] {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("invalid role %q: must be one of user, assistant, system", req.Role))
		return
	}
	if req.Content == "" {
		s.writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	msgID, err := s.store.AppendMessage(r.Context(), id, req.Role, req.Content, req.Model)
	if errors.Is(err, storage.ErrConversationNotFound) {
		s.writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]int64{"message_id": msgID})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteConversation(r.Context(), id); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearAll(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "history cleared"})
}

func (s *Server) handleSearchHistory(w http.ResponseWriter, r *http.Request) {
	query := r.PathValue("query")
	limit := queryInt(r, "limit", 20)

	results, err := s.store.SearchConversations(r.Context(), query, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": results,
	})
}

// ============================================================================
// EXPORT HANDLER
// ============================================================================

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "markdown"
	}

	exporter, err := export.ForFormat(format, nil)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := s.store.GetConversation(r.Context(), id)
	if errors.Is(err, storage.ErrConversationNotFound) {
		s.writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	content, err := exporter.Export(conv)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", exporter.MimeType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=conversation_%d%s", id, exporter.FileExtension()))
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid conversation id")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// Engine exposes the server's engine. Used by the CLI when serving and
// chatting through the same process.
func (s *Server) Engine() *engine.Engine {
	return s.engine
}
