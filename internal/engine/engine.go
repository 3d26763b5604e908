// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/nexus/internal/config"
	"github.com/jeranaias/nexus/internal/logging"
	"github.com/jeranaias/nexus/internal/ollama"
	"github.com/jeranaias/nexus/internal/router"
	"github.com/jeranaias/nexus/internal/storage"
)

// =============================================================================
// STATUS TYPES
// =============================================================================

// Backend reachability states reported by CheckStatus.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusError   = "error"
)

// Status describes backend reachability and per-model availability.
type Status struct {
	Status string `json:"status"`
	// ModelsAvailable maps registry keys to whether the backend has
	// the model pulled. Only populated when online.
	ModelsAvailable map[string]bool `json:"models_available,omitempty"`
	AllModels       []string        `json:"all_models,omitempty"`
	Message         string          `json:"message,omitempty"`
}

// Stats summarizes the session for status surfaces.
type Stats struct {
	SessionID     string              `json:"session_id"`
	TotalMessages int                 `json:"total_messages"`
	CurrentModel  string              `json:"current_model,omitempty"`
	Models        []router.Descriptor `json:"models_config"`
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine orchestrates one chat session end to end: routing, prompt
// assembly, backend streaming, and history commits.
type Engine struct {
	cfg    *config.Config
	router *router.Router
	client *ollama.Client
	store  *storage.Store
	log    *logging.Logger

	sessionID string
	window    *Window

	mu             sync.Mutex
	conversationID int64
	currentModel   string
}

// New creates an engine for a fresh session. The store may be nil, in
// which case history is kept only in the context window.
func New(cfg *config.Config, store *storage.Store, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.NewNop()
	}

	sessionID := uuid.NewString()

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Ollama.BaseURL,
		ProbeTimeout: time.Duration(cfg.Agent.ProbeTimeoutSecs) * time.Second,
	})

	return &Engine{
		cfg:       cfg,
		router:    router.New(cfg.Ollama.Models),
		client:    client,
		store:     store,
		log:       log.WithSession(sessionID),
		sessionID: sessionID,
		window:    NewWindow(cfg.Agent.ContextWindow),
	}
}

// SessionID returns the session's unique identifier.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Router exposes the engine's model router.
func (e *Engine) Router() *router.Router {
	return e.router
}

// =============================================================================
// GENERATION
// =============================================================================

// Generate routes the query, streams the model's answer, and commits the
// exchange to history on success. The returned channel is one-shot: it
// delivers ModelSelected, then Content events in frame order, then exactly
// one of Complete or Error, and is closed. Cancelling ctx releases the
// backend stream; a cancelled or failed generation commits nothing.
func (e *Engine) Generate(ctx context.Context, query string) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)
		e.generate(ctx, query, events)
	}()

	return events
}

func (e *Engine) generate(ctx context.Context, query string, events chan<- Event) {
	sel := e.router.SelectModel(query)

	e.mu.Lock()
	e.currentModel = sel.Model
	e.mu.Unlock()

	e.log.Debug("model selected",
		zap.String("model", sel.Model),
		zap.String("task_type", string(sel.TaskType)))

	if !emit(ctx, events, Event{
		Type:     EventModelSelected,
		Model:    sel.Model,
		Role:     sel.Role,
		TaskType: string(sel.TaskType),
	}) {
		return
	}

	e.window.Append("user", query)
	messages := e.buildPrompt()

	timeout := time.Duration(e.cfg.Agent.GenerateTimeoutSecs) * time.Second
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var acc ollama.Accumulator
	err := e.client.ChatStream(genCtx, sel.Model, messages,
		&ollama.Options{Temperature: e.cfg.Agent.Temperature},
		func(chunk ollama.StreamChunk) {
			acc.Add(chunk)
			if chunk.Content != "" {
				emit(ctx, events, Event{
					Type:    EventContent,
					Content: chunk.Content,
					Done:    chunk.Done,
				})
			}
		})

	if err != nil {
		// Partial output is discarded, never persisted.
		e.log.Warn("generation failed", zap.String("model", sel.Model), zap.Error(err))
		emit(ctx, events, Event{Type: EventError, Model: sel.Model, Error: err.Error()})
		return
	}

	full := acc.String()
	e.window.Append("assistant", full)

	if err := e.commit(ctx, query, full, sel.Model); err != nil {
		e.log.Error("history commit failed", zap.Error(err))
		emit(ctx, events, Event{Type: EventError, Model: sel.Model, Error: err.Error()})
		return
	}

	emit(ctx, events, Event{Type: EventComplete, Model: sel.Model, FullResponse: full})
}

// emit sends an event unless the consumer has gone away. Returns false
// once ctx is done so the producer can stop early.
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// buildPrompt assembles the system preamble plus the recent window.
func (e *Engine) buildPrompt() []ollama.Message {
	recent := e.window.Messages()

	messages := make([]ollama.Message, 0, len(recent)+1)
	messages = append(messages, ollama.NewSystemMessage(SystemPrompt))
	messages = append(messages, recent...)
	return messages
}

// commit persists the user and assistant turns. The conversation row is
// created lazily on the first successful exchange, titled from the query.
func (e *Engine) commit(ctx context.Context, query, answer, model string) error {
	if e.store == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conversationID == 0 {
		id, err := e.store.CreateConversation(ctx, conversationTitle(query), model)
		if err != nil {
			return err
		}
		e.conversationID = id
	}

	if _, err := e.store.AppendMessage(ctx, e.conversationID, "user", query, ""); err != nil {
		return err
	}
	if _, err := e.store.AppendMessage(ctx, e.conversationID, "assistant", answer, model); err != nil {
		return err
	}
	return nil
}

// conversationTitle derives a title from the first query, truncated to
// 50 runes.
func conversationTitle(query string) string {
	title := strings.TrimSpace(query)
	if title == "" {
		title = "New conversation"
	}

	runes := []rune(title)
	if len(runes) > 50 {
		title = string(runes[:50]) + "..."
	}
	return title
}

// =============================================================================
// REQUEST/RESPONSE
// =============================================================================

// Answer is the drained result of a full generation.
type Answer struct {
	Text     string `json:"response"`
	Model    string `json:"model"`
	TaskType string `json:"task_type"`
}

// Ask drains a Generate stream into a single accumulated answer.
func (e *Engine) Ask(ctx context.Context, query string) (*Answer, error) {
	answer := &Answer{}

	for ev := range e.Generate(ctx, query) {
		switch ev.Type {
		case EventModelSelected:
			answer.Model = ev.Model
			answer.TaskType = ev.TaskType
		case EventComplete:
			answer.Text = ev.FullResponse
		case EventError:
			return nil, &ollama.ClientError{
				Type:    ollama.ErrTypeUnknown,
				Message: ev.Error,
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return answer, nil
}

// =============================================================================
// STATUS AND SESSION CONTROL
// =============================================================================

// CheckStatus probes the backend's model listing with a short timeout.
// Unreachable backends report offline rather than an error.
func (e *Engine) CheckStatus(ctx context.Context) Status {
	probeCtx, cancel := context.WithTimeout(ctx,
		time.Duration(e.cfg.Agent.ProbeTimeoutSecs)*time.Second)
	defer cancel()

	models, err := e.client.ListModels(probeCtx)
	if err != nil {
		if ollama.IsNotRunning(err) || ollama.IsTimeout(err) {
			return Status{Status: StatusOffline, Message: err.Error()}
		}
		return Status{Status: StatusError, Message: err.Error()}
	}

	available := make(map[string]bool, len(models))
	all := make([]string, 0, len(models))
	for _, m := range models {
		available[m.Name] = true
		all = append(all, m.Name)
	}

	registry := make(map[string]bool, len(e.cfg.Ollama.Models))
	for key, entry := range e.cfg.Ollama.Models {
		registry[key] = available[entry.Name]
	}

	return Status{
		Status:          StatusOnline,
		ModelsAvailable: registry,
		AllModels:       all,
	}
}

// Reset clears the in-memory context window and detaches the session from
// its conversation. Persisted history is untouched; the next exchange
// starts a new conversation row.
func (e *Engine) Reset() {
	e.window.Reset()

	e.mu.Lock()
	e.conversationID = 0
	e.currentModel = ""
	e.mu.Unlock()

	e.log.Debug("session reset")
}

// Stats returns session counters and the model registry.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	current := e.currentModel
	e.mu.Unlock()

	return Stats{
		SessionID:     e.sessionID,
		TotalMessages: e.window.Len(),
		CurrentModel:  current,
		Models:        e.router.Models(),
	}
}

// ConversationID returns the backing conversation row, or 0 when no
// exchange has been committed yet.
func (e *Engine) ConversationID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conversationID
}
