// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable conversation history backed by SQLite.
//
// Conversations and their messages live in relational tables; a derived
// FTS5 table mirrors message content for full-text search. Every mutation
// runs in a single transaction so the search index never drifts from the
// message rows it shadows.
package storage
