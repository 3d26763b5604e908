// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/nexus/internal/config"
	"github.com/jeranaias/nexus/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func testConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.Ollama.BaseURL = baseURL
	cfg.Agent.GenerateTimeoutSecs = 5
	cfg.Agent.ProbeTimeoutSecs = 1
	return cfg
}

func testStore(t *testing.T) *storage.Store {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func frame(content string, done bool) string {
	b, _ := json.Marshal(map[string]interface{}{
		"model":   "test-model",
		"message": map[string]string{"role": "assistant", "content": content},
		"done":    done,
	})
	return string(b)
}

// fakeBackend serves /api/chat with the given NDJSON lines.
func fakeBackend(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func collect(ch <-chan Event) []Event {
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

// =============================================================================
// GENERATE TESTS
// =============================================================================

func TestGenerate_EventSequence(t *testing.T) {
	srv := fakeBackend(t, frame("Hel", false), frame("lo", false), frame("", true))
	store := testStore(t)
	eng := New(testConfig(srv.URL), store, nil)

	events := collect(eng.Generate(context.Background(), "say hello"))

	require.Len(t, events, 4)
	require.Equal(t, EventModelSelected, events[0].Type)
	require.NotEmpty(t, events[0].Model)

	require.Equal(t, EventContent, events[1].Type)
	require.Equal(t, "Hel", events[1].Content)
	require.Equal(t, EventContent, events[2].Type)
	require.Equal(t, "lo", events[2].Content)

	require.Equal(t, EventComplete, events[3].Type)
	require.Equal(t, "Hello", events[3].FullResponse)

	// Exactly one assistant message committed.
	conv, err := store.GetConversation(context.Background(), eng.ConversationID())
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	require.Equal(t, "user", conv.Messages[0].Role)
	require.Equal(t, "say hello", conv.Messages[0].Content)
	require.Equal(t, "assistant", conv.Messages[1].Role)
	require.Equal(t, "Hello", conv.Messages[1].Content)
}

func TestGenerate_SkipsMalformedFrames(t *testing.T) {
	srv := fakeBackend(t,
		frame("Hi", false),
		`{not json at all`,
		frame(" there", false),
		frame("", true))
	eng := New(testConfig(srv.URL), nil, nil)

	events := collect(eng.Generate(context.Background(), "greet me"))

	last := events[len(events)-1]
	require.Equal(t, EventComplete, last.Type)
	require.Equal(t, "Hi there", last.FullResponse)
}

func TestGenerate_TruncatedStream(t *testing.T) {
	// Stream ends without a terminal frame.
	srv := fakeBackend(t, frame("partial answer", false))
	store := testStore(t)
	eng := New(testConfig(srv.URL), store, nil)

	events := collect(eng.Generate(context.Background(), "anything"))

	var errCount int
	for _, ev := range events {
		if ev.Type == EventError {
			errCount++
		}
		require.NotEqual(t, EventComplete, ev.Type)
	}
	require.Equal(t, 1, errCount, "exactly one error event")

	// Partial output was discarded, nothing persisted.
	convs, msgs, err := store.Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, convs)
	require.Zero(t, msgs)
}

func TestGenerate_BackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	store := testStore(t)
	eng := New(testConfig(srv.URL), store, nil)

	events := collect(eng.Generate(context.Background(), "hello?"))

	last := events[len(events)-1]
	require.Equal(t, EventError, last.Type)
	require.NotEmpty(t, last.Error)

	convs, _, err := store.Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, convs)
}

func TestGenerate_CancellationCommitsNothing(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, frame("slow", false))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	t.Cleanup(func() { close(release); srv.Close() })

	store := testStore(t)
	eng := New(testConfig(srv.URL), store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := eng.Generate(ctx, "take your time")

	// Drain until the first content fragment, then abandon.
	for ev := range events {
		if ev.Type == EventContent {
			cancel()
			break
		}
	}
	for range events {
	}

	convs, msgs, err := store.Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, convs)
	require.Zero(t, msgs)
}

func TestGenerate_MultiTurnContext(t *testing.T) {
	srv := fakeBackend(t, frame("answer", true))
	eng := New(testConfig(srv.URL), nil, nil)

	collect(eng.Generate(context.Background(), "first"))
	collect(eng.Generate(context.Background(), "second"))

	// Two user turns and two assistant turns in the window.
	require.Equal(t, 4, eng.Stats().TotalMessages)
}

// =============================================================================
// ASK TESTS
// =============================================================================

func TestAsk(t *testing.T) {
	srv := fakeBackend(t, frame("42", true))
	eng := New(testConfig(srv.URL), nil, nil)

	answer, err := eng.Ask(context.Background(), "meaning of life?")
	require.NoError(t, err)
	require.Equal(t, "42", answer.Text)
	require.NotEmpty(t, answer.Model)
	require.NotEmpty(t, answer.TaskType)
}

func TestAsk_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	eng := New(testConfig(srv.URL), nil, nil)

	_, err := eng.Ask(context.Background(), "hello")
	require.Error(t, err)
}

// =============================================================================
// STATUS TESTS
// =============================================================================

func TestCheckStatus_Online(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"llama3.1:8b"}]}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Ollama.Models = map[string]config.ModelEntry{
		"default": {Name: "llama3.1:8b", Role: "generalist"},
		"coder":   {Name: "qwen2.5-coder:7b", Role: "coder"},
	}

	status := New(cfg, nil, nil).CheckStatus(context.Background())

	require.Equal(t, StatusOnline, status.Status)
	require.True(t, status.ModelsAvailable["default"])
	require.False(t, status.ModelsAvailable["coder"])
	require.Equal(t, []string{"llama3.1:8b"}, status.AllModels)
}

func TestCheckStatus_Offline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	eng := New(testConfig(srv.URL), nil, nil)

	status := eng.CheckStatus(context.Background())
	require.Equal(t, StatusOffline, status.Status)
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestReset(t *testing.T) {
	srv := fakeBackend(t, frame("hello!", true))
	store := testStore(t)
	eng := New(testConfig(srv.URL), store, nil)

	collect(eng.Generate(context.Background(), "hi"))
	firstConv := eng.ConversationID()
	require.NotZero(t, firstConv)

	eng.Reset()
	require.Zero(t, eng.Stats().TotalMessages)
	require.Zero(t, eng.ConversationID())

	// Persisted history survives the reset.
	conv, err := store.GetConversation(context.Background(), firstConv)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)

	// The next exchange starts a fresh conversation.
	collect(eng.Generate(context.Background(), "hello again"))
	require.NotEqual(t, firstConv, eng.ConversationID())
}

func TestStats(t *testing.T) {
	srv := fakeBackend(t, frame("ok", true))
	eng := New(testConfig(srv.URL), nil, nil)

	stats := eng.Stats()
	require.NotEmpty(t, stats.SessionID)
	require.Zero(t, stats.TotalMessages)
	require.NotEmpty(t, stats.Models)

	collect(eng.Generate(context.Background(), "hello"))

	stats = eng.Stats()
	require.Equal(t, 2, stats.TotalMessages)
	require.NotEmpty(t, stats.CurrentModel)
}

// =============================================================================
// WINDOW TESTS
// =============================================================================

func TestWindow_Eviction(t *testing.T) {
	w := NewWindow(3)

	for i := 0; i < 5; i++ {
		w.Append("user", fmt.Sprintf("msg-%d", i))
	}

	msgs := w.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, "msg-2", msgs[0].Content)
	require.Equal(t, "msg-4", msgs[2].Content)
}

func TestWindow_SnapshotIsolation(t *testing.T) {
	w := NewWindow(10)
	w.Append("user", "original")

	snap := w.Messages()
	snap[0].Content = "mutated"

	require.Equal(t, "original", w.Messages()[0].Content)
}

// =============================================================================
// TITLE TESTS
// =============================================================================

func TestConversationTitle(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"short", "hello world", "hello world"},
		{"trimmed", "  padded  ", "padded"},
		{"empty", "   ", "New conversation"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, conversationTitle(tc.query))
		})
	}
}

func TestConversationTitle_Truncation(t *testing.T) {
	long := ""
	for i := 0; i < 60; i++ {
		long += "x"
	}

	title := conversationTitle(long)
	require.Len(t, []rune(title), 53) // 50 runes plus ellipsis
}

// Generation must stay within the configured timeout rather than hanging
// on a stalled backend.
func TestGenerate_Timeout(t *testing.T) {
	stall := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-stall
	}))
	t.Cleanup(func() { close(stall); srv.Close() })

	cfg := testConfig(srv.URL)
	cfg.Agent.GenerateTimeoutSecs = 1

	eng := New(cfg, nil, nil)

	start := time.Now()
	events := collect(eng.Generate(context.Background(), "hang"))

	require.Less(t, time.Since(start), 4*time.Second)
	require.Equal(t, EventError, events[len(events)-1].Type)
}
