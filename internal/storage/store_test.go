// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestCreateAndGetConversation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateConversation(ctx, "First chat", "llama3.1:8b")
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	conv, err := store.GetConversation(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "First chat", conv.Title)
	require.Equal(t, "llama3.1:8b", conv.Model)
	require.Equal(t, 0, conv.MessageCount)
	require.Empty(t, conv.Messages)
}

func TestGetConversation_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetConversation(context.Background(), 9999)
	require.ErrorIs(t, err, ErrConversationNotFound)
}

func TestAppendMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateConversation(ctx, "Chat", "")
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, id, "user", "hello there", "")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, id, "assistant", "hi, how can I help?", "llama3.1:8b")
	require.NoError(t, err)

	conv, err := store.GetConversation(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 2, conv.MessageCount)
	require.Len(t, conv.Messages, 2)

	// Insertion order is preserved.
	require.Equal(t, "user", conv.Messages[0].Role)
	require.Equal(t, "hello there", conv.Messages[0].Content)
	require.Equal(t, "assistant", conv.Messages[1].Role)
	require.Equal(t, "llama3.1:8b", conv.Messages[1].Model)

	// updated_at advanced past created_at.
	require.False(t, conv.UpdatedAt.Before(conv.CreatedAt))
}

// TestAppendMessage_Concurrent hammers one conversation from many goroutines.
// The pinned single connection serializes writers, so every append must land
// and the counter must match the row count exactly.
func TestAppendMessage_Concurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateConversation(ctx, "busy", "")
	require.NoError(t, err)

	const writers = 40

	var g errgroup.Group
	for i := 0; i < writers; i++ {
		i := i
		g.Go(func() error {
			_, err := store.AppendMessage(ctx, id, "user", fmt.Sprintf("message %d", i), "")
			return err
		})
	}
	require.NoError(t, g.Wait())

	conv, err := store.GetConversation(ctx, id)
	require.NoError(t, err)
	require.Equal(t, writers, conv.MessageCount)
	require.Len(t, conv.Messages, writers)

	// Rows come back in insertion order with no gaps or duplicates.
	seen := make(map[string]bool, writers)
	for i, msg := range conv.Messages {
		require.False(t, seen[msg.Content], "duplicate row %q", msg.Content)
		seen[msg.Content] = true
		if i > 0 {
			require.Greater(t, msg.ID, conv.Messages[i-1].ID)
		}
	}
}

func TestAppendMessage_UnknownConversation(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AppendMessage(context.Background(), 424242, "user", "orphan", "")
	require.ErrorIs(t, err, ErrConversationNotFound)

	// Nothing leaked into the tables.
	convs, msgs, err := store.Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, convs)
	require.Zero(t, msgs)
}

func TestListConversations_OrderedByRecency(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreateConversation(ctx, "first", "")
	require.NoError(t, err)
	second, err := store.CreateConversation(ctx, "second", "")
	require.NoError(t, err)

	// Touch the first conversation so it becomes most recent.
	_, err = store.AppendMessage(ctx, first, "user", "bump", "")
	require.NoError(t, err)

	list, err := store.ListConversations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, first, list[0].ID)
	require.Equal(t, second, list[1].ID)
}

func TestSearchConversations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	match, err := store.CreateConversation(ctx, "about go", "")
	require.NoError(t, err)
	other, err := store.CreateConversation(ctx, "about cooking", "")
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, match, "user", "tell me about goroutine scheduling", "")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, match, "assistant", "the scheduler multiplexes goroutines", "")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, other, "user", "how do I poach an egg", "")
	require.NoError(t, err)

	results, err := store.SearchConversations(ctx, "goroutine", 10)
	require.NoError(t, err)

	// Distinct: two matching messages, one conversation.
	require.Len(t, results, 1)
	require.Equal(t, match, results[0].ID)
}

func TestSearchConversations_LiteralTokens(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateConversation(ctx, "tokens", "")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, id, "user", "remember unique-token-42 for later", "")
	require.NoError(t, err)

	// Dashes are FTS operators when unquoted; the store must treat the
	// query as literal text.
	results, err := store.SearchConversations(ctx, "unique-token-42", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestSearchConversations_EmptyQuery(t *testing.T) {
	store := newTestStore(t)

	results, err := store.SearchConversations(context.Background(), "   ", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestDeleteConversation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateConversation(ctx, "doomed", "")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, id, "user", "delete me please", "")
	require.NoError(t, err)

	require.NoError(t, store.DeleteConversation(ctx, id))

	_, err = store.GetConversation(ctx, id)
	require.ErrorIs(t, err, ErrConversationNotFound)

	// Messages and search index are gone too.
	_, msgs, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, msgs)

	results, err := store.SearchConversations(ctx, "delete", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestDeleteConversation_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.DeleteConversation(ctx, 12345))
	require.NoError(t, store.DeleteConversation(ctx, 12345))
}

func TestClearAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := store.CreateConversation(ctx, "chat", "")
		require.NoError(t, err)
		_, err = store.AppendMessage(ctx, id, "user", "hi", "")
		require.NoError(t, err)
	}

	require.NoError(t, store.ClearAll(ctx))

	convs, msgs, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, convs)
	require.Zero(t, msgs)
}

func TestStoreErrorsAreTyped(t *testing.T) {
	store := newTestStore(t)
	store.Close()

	_, err := store.CreateConversation(context.Background(), "after close", "")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrDatabaseError))
}
