// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/nexus/internal/storage"
)

func sampleConversation() *storage.Conversation {
	created := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	return &storage.Conversation{
		ID:           7,
		Title:        "goroutine scheduling",
		CreatedAt:    created,
		UpdatedAt:    created.Add(2 * time.Minute),
		Model:        "llama3.1:8b",
		MessageCount: 2,
		Messages: []storage.Message{
			{ID: 1, ConversationID: 7, Role: "user", Content: "how does the scheduler work?", Timestamp: created},
			{ID: 2, ConversationID: 7, Role: "assistant", Content: "The scheduler multiplexes goroutines onto OS threads.", Model: "llama3.1:8b", Timestamp: created.Add(time.Minute)},
		},
	}
}

// =============================================================================
// MARKDOWN TESTS
// =============================================================================

func TestMarkdownExport(t *testing.T) {
	exporter := NewMarkdownExporter(nil)

	content, err := exporter.Export(sampleConversation())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	text := string(content)

	for _, want := range []string{
		"title: goroutine scheduling",
		"model: llama3.1:8b",
		"# goroutine scheduling",
		"[User]",
		"[Assistant]",
		"how does the scheduler work?",
		"multiplexes goroutines",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestMarkdownExport_NoMetadata(t *testing.T) {
	exporter := NewMarkdownExporter(&Options{IncludeMetadata: false})

	content, err := exporter.Export(sampleConversation())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if strings.Contains(string(content), "Session Information") {
		t.Error("metadata section should be omitted")
	}
}

func TestMarkdownExport_EmptyConversation(t *testing.T) {
	exporter := NewMarkdownExporter(nil)

	conv := sampleConversation()
	conv.Messages = nil

	if _, err := exporter.Export(conv); err == nil {
		t.Error("expected error for conversation with no messages")
	}

	if _, err := exporter.Export(nil); err == nil {
		t.Error("expected error for nil conversation")
	}
}

// =============================================================================
// JSON TESTS
// =============================================================================

func TestJSONExport_RoundTrip(t *testing.T) {
	exporter := NewJSONExporter()

	content, err := exporter.Export(sampleConversation())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var decoded storage.Conversation
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("exported JSON is not valid: %v", err)
	}

	if decoded.Title != "goroutine scheduling" {
		t.Errorf("Title = %q", decoded.Title)
	}
	if len(decoded.Messages) != 2 {
		t.Errorf("Messages = %d, want 2", len(decoded.Messages))
	}
}

// =============================================================================
// FILE EXPORT TESTS
// =============================================================================

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()

	path, err := ExportToFile(sampleConversation(), NewMarkdownExporter(nil), &Options{
		OutputDir:       dir,
		IncludeMetadata: true,
	})
	if err != nil {
		t.Fatalf("ExportToFile failed: %v", err)
	}

	if !strings.HasSuffix(path, ".md") {
		t.Errorf("path = %q, want .md suffix", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if !strings.Contains(string(data), "goroutine scheduling") {
		t.Error("exported file missing conversation content")
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantExt string
		wantErr bool
	}{
		{"markdown", ".md", false},
		{"md", ".md", false},
		{"json", ".json", false},
		{"xml", "", true},
	}

	for _, tc := range tests {
		exporter, err := ForFormat(tc.format, nil)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ForFormat(%q) should fail", tc.format)
			}
			continue
		}
		if err != nil {
			t.Errorf("ForFormat(%q) failed: %v", tc.format, err)
			continue
		}
		if exporter.FileExtension() != tc.wantExt {
			t.Errorf("ForFormat(%q).FileExtension() = %q, want %q",
				tc.format, exporter.FileExtension(), tc.wantExt)
		}
	}
}

// =============================================================================
// FILENAME TESTS
// =============================================================================

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"simple", "simple"},
		{"with spaces", "with_spaces"},
		{"a/b\\c:d", "a-b-c-d"},
		{"", "conversation"},
	}

	for _, tc := range tests {
		if got := sanitizeFilename(tc.input); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
