// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"sync"

	"github.com/jeranaias/nexus/internal/ollama"
)

// DefaultWindowSize is the number of recent messages included in prompts.
const DefaultWindowSize = 10

// Window is a bounded, thread-safe view of the recent conversation used
// for prompt assembly. The authoritative full history lives in storage;
// the window only keeps what the next prompt needs.
type Window struct {
	mu       sync.Mutex
	messages []ollama.Message
	max      int
}

// NewWindow creates a window holding at most max messages.
func NewWindow(max int) *Window {
	if max <= 0 {
		max = DefaultWindowSize
	}
	return &Window{max: max}
}

// Append adds a message, evicting the oldest when the window is full.
func (w *Window) Append(role, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.messages = append(w.messages, ollama.Message{Role: role, Content: content})
	if len(w.messages) > w.max {
		w.messages = w.messages[len(w.messages)-w.max:]
	}
}

// Messages returns a snapshot of the window contents, oldest first.
func (w *Window) Messages() []ollama.Message {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]ollama.Message, len(w.messages))
	copy(out, w.messages)
	return out
}

// Len returns the number of messages currently held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.messages)
}

// Reset empties the window.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = nil
}
