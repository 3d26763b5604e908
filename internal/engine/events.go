// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventType discriminates the variants of a stream event.
type EventType string

const (
	// EventModelSelected is emitted once, first, with the routing decision.
	EventModelSelected EventType = "model_selected"

	// EventContent carries an incremental text fragment.
	EventContent EventType = "content"

	// EventComplete is the successful terminal event.
	EventComplete EventType = "complete"

	// EventError is the failure terminal event.
	EventError EventType = "error"
)

// Event is one element of the stream produced by Generate. Exactly one of
// Complete or Error terminates each stream; fields are populated per Type.
type Event struct {
	Type EventType `json:"type"`

	// Model is set on model_selected, complete, and error events.
	Model string `json:"model,omitempty"`

	// Routing decision (model_selected only).
	Role     string `json:"role,omitempty"`
	TaskType string `json:"task_type,omitempty"`

	// Incremental fragment (content only).
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`

	// Accumulated answer (complete only).
	FullResponse string `json:"full_response,omitempty"`

	// Failure description (error only).
	Error string `json:"error,omitempty"`
}
