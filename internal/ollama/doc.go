// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// The wire protocol is newline-delimited JSON: a chat request with
// stream=true yields a sequence of frames, each optionally carrying an
// incremental message.content fragment, with the first frame whose done
// flag is true terminating the stream. Frames that fail to parse are
// skipped, never fatal.
package ollama
