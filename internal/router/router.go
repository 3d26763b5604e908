// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"sort"

	"github.com/jeranaias/nexus/internal/config"
)

// =============================================================================
// MODEL DESCRIPTORS
// =============================================================================

// DefaultKey is the logical registry key consulted by model selection.
const DefaultKey = "default"

// Descriptor describes one selectable backend model.
type Descriptor struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	UseFor string `json:"use_for"`
}

// Selection is the result of routing a query.
type Selection struct {
	Model    string
	Role     string
	TaskType TaskType
}

// =============================================================================
// ROUTER
// =============================================================================

// Router selects a backend model for a query.
//
// The registry is loaded once at construction and never mutated, so a Router
// is safe for concurrent use by multiple sessions.
//
// Selection currently always returns the descriptor registered under
// DefaultKey regardless of the classified task type; the classification is
// still computed and reported for observability. Do not "fix" this: per-task
// routing is intentionally inactive, and the contract is pinned by tests.
type Router struct {
	classifier *Classifier
	registry   map[string]Descriptor
	keys       []string // sorted, for stable enumeration
}

// New creates a router from the configured model registry.
func New(models map[string]config.ModelEntry) *Router {
	registry := make(map[string]Descriptor, len(models))
	keys := make([]string, 0, len(models))
	for key, m := range models {
		registry[key] = Descriptor{
			Key:    key,
			Name:   m.Name,
			Role:   m.Role,
			UseFor: m.UseFor,
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return &Router{
		classifier: NewClassifier(),
		registry:   registry,
		keys:       keys,
	}
}

// WithClassifier replaces the default classifier, for callers that supply
// custom rule sets.
func (r *Router) WithClassifier(c *Classifier) *Router {
	r.classifier = c
	return r
}

// Classify exposes the router's classifier.
func (r *Router) Classify(query string) TaskType {
	return r.classifier.Classify(query)
}

// SelectModel classifies the query and returns the selected model name, its
// role, and the classified task type.
func (r *Router) SelectModel(query string) Selection {
	task := r.classifier.Classify(query)
	d := r.defaultDescriptor()
	return Selection{
		Model:    d.Name,
		Role:     d.Role,
		TaskType: task,
	}
}

// ModelInfo returns descriptor details for a registry key.
// The key is currently ignored and the default descriptor is returned;
// this mirrors SelectModel's simplification and is a documented quirk.
func (r *Router) ModelInfo(key string) Descriptor {
	return r.defaultDescriptor()
}

// Models enumerates the full registry in stable key order.
func (r *Router) Models() []Descriptor {
	out := make([]Descriptor, 0, len(r.registry))
	for _, key := range r.keys {
		out = append(out, r.registry[key])
	}
	return out
}

// defaultDescriptor returns the DefaultKey entry, or an arbitrary registry
// entry if "default" is absent. The registry is validated non-empty at
// config load, so there is always at least one entry.
func (r *Router) defaultDescriptor() Descriptor {
	if d, ok := r.registry[DefaultKey]; ok {
		return d
	}
	for _, key := range r.keys {
		return r.registry[key]
	}
	return Descriptor{}
}
