// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"testing"

	"github.com/jeranaias/nexus/internal/config"
)

func testRegistry() map[string]config.ModelEntry {
	return map[string]config.ModelEntry{
		"default": {Name: "llama3.1:8b", Role: "generalist", UseFor: "conversation and reasoning"},
		"coder":   {Name: "qwen2.5-coder:14b", Role: "coder", UseFor: "code generation"},
		"fast":    {Name: "llama3.2:1b", Role: "fast", UseFor: "quick answers"},
	}
}

// =============================================================================
// SELECTION TESTS
// =============================================================================

// TestSelectModel_AlwaysDefault pins the current routing simplification:
// every query selects the "default" registry entry, whatever its task type.
func TestSelectModel_AlwaysDefault(t *testing.T) {
	r := New(testRegistry())

	code := r.SelectModel("write a python function to sort a list")
	quick := r.SelectModel("hi")

	if code.Model != "llama3.1:8b" {
		t.Errorf("code query model = %q, want default", code.Model)
	}
	if quick.Model != "llama3.1:8b" {
		t.Errorf("quick query model = %q, want default", quick.Model)
	}
	if code.Model != quick.Model {
		t.Error("all queries must select the identical default model")
	}

	// Classification still differs and is reported.
	if code.TaskType != TaskCode {
		t.Errorf("code query task = %v, want code", code.TaskType)
	}
	if quick.TaskType != TaskQuick {
		t.Errorf("quick query task = %v, want quick", quick.TaskType)
	}
}

func TestSelectModel_EmptyQuery(t *testing.T) {
	r := New(testRegistry())

	sel := r.SelectModel("")
	if sel.Model != "llama3.1:8b" {
		t.Errorf("Model = %q, want default", sel.Model)
	}
	if sel.TaskType != TaskGeneral {
		t.Errorf("TaskType = %v, want general", sel.TaskType)
	}
}

func TestSelectModel_NoDefaultEntry(t *testing.T) {
	r := New(map[string]config.ModelEntry{
		"coder": {Name: "qwen2.5-coder:14b", Role: "coder", UseFor: "code"},
	})

	sel := r.SelectModel("hello")
	if sel.Model != "qwen2.5-coder:14b" {
		t.Errorf("Model = %q, want fallback registry entry", sel.Model)
	}
}

// =============================================================================
// MODEL INFO TESTS
// =============================================================================

func TestModelInfo_IgnoresKey(t *testing.T) {
	r := New(testRegistry())

	// Documented quirk: the key is ignored and the default entry returned.
	for _, key := range []string{"default", "coder", "nonexistent"} {
		d := r.ModelInfo(key)
		if d.Name != "llama3.1:8b" {
			t.Errorf("ModelInfo(%q).Name = %q, want default entry", key, d.Name)
		}
	}
}

// =============================================================================
// REGISTRY ENUMERATION TESTS
// =============================================================================

func TestModels_EnumeratesFullRegistry(t *testing.T) {
	r := New(testRegistry())

	models := r.Models()
	if len(models) != 3 {
		t.Fatalf("Models() length = %d, want 3", len(models))
	}

	// Stable key order.
	wantKeys := []string{"coder", "default", "fast"}
	for i, d := range models {
		if d.Key != wantKeys[i] {
			t.Errorf("Models()[%d].Key = %q, want %q", i, d.Key, wantKeys[i])
		}
		if d.Name == "" || d.Role == "" {
			t.Errorf("Models()[%d] has empty fields: %+v", i, d)
		}
	}
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

func TestRouter_ConcurrentUse(t *testing.T) {
	r := New(testRegistry())

	done := make(chan struct{})
	for i := 0; i < 16; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				_ = r.SelectModel("write a go program")
				_ = r.Models()
				_ = r.ModelInfo("coder")
			}
		}()
	}
	for i := 0; i < 16; i++ {
		<-done
	}
}
