// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine orchestrates streaming chat generation.
//
// A single Engine owns one chat session: a bounded in-memory context
// window for prompt assembly, a lazily created conversation in durable
// storage, and the routing decision for each query. Generate is the
// core operation; it returns a one-shot event stream that mirrors the
// backend's frame arrival order.
package engine
