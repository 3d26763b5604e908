// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router provides query intent classification and model selection.
//
// Classification scores a query against per-category pattern rule sets and
// returns the best-matching TaskType. Model selection consults a registry of
// model descriptors loaded from configuration. Routing differentiation by
// task type is not yet active: selection always returns the "default"
// registry entry, and the classification result is reported alongside it for
// observability.
//
// Both the classifier and the router are stateless and safe for concurrent
// use by multiple sessions.
package router
