// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader processes a newline-delimited JSON response stream.
// Each line is one JSON frame. Blank lines and lines that fail to parse
// are skipped; a garbled frame never aborts the whole stream.
type StreamReader struct {
	scanner *bufio.Scanner
	done    bool
}

// NewStreamReader creates a stream reader wrapping an NDJSON body.
func NewStreamReader(r io.Reader) *StreamReader {
	scanner := bufio.NewScanner(r)
	// Frames carry at most a few KB of content, but leave generous
	// headroom for models that emit long uninterrupted tokens.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &StreamReader{scanner: scanner}
}

// readChunk reads the next frame from the stream.
// Returns (nil, nil) for lines that should be skipped, and io.EOF once the
// terminal frame has been consumed or the underlying stream ends.
func (r *StreamReader) readChunk() (*StreamChunk, error) {
	if r.done {
		return nil, io.EOF
	}

	if !r.scanner.Scan() {
		r.done = true
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	line := strings.TrimSpace(r.scanner.Text())
	if line == "" {
		return nil, nil
	}

	var frame chatFrame
	if err := json.Unmarshal([]byte(line), &frame); err != nil {
		// Malformed frame. Skip it and keep reading.
		return nil, nil
	}

	if frame.Error != "" {
		r.done = true
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: frame.Error}
	}

	chunk := &StreamChunk{
		Content:          frame.Message.Content,
		Done:             frame.Done,
		DoneReason:       frame.DoneReason,
		Model:            frame.Model,
		PromptTokens:     frame.PromptEvalCount,
		CompletionTokens: frame.EvalCount,
	}

	if frame.Done {
		r.done = true
	}

	return chunk, nil
}

// Process reads the stream to completion, invoking callback for each frame.
// It returns nil on a clean terminal frame, the context error on
// cancellation, and a ClientError if the stream ends without one.
func (r *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	sawDone := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunk, err := r.readChunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if sawDone {
					return nil
				}
				return &ClientError{
					Type:    ErrTypeInvalidResponse,
					Message: "stream ended before completion",
				}
			}
			return err
		}
		if chunk == nil {
			continue
		}

		callback(*chunk)

		if chunk.Done {
			sawDone = true
		}
	}
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

// Accumulator collects streamed content chunks into a full response.
type Accumulator struct {
	builder strings.Builder

	// Stats from the terminal frame.
	Model            string
	DoneReason       string
	PromptTokens     int
	CompletionTokens int
}

// Add appends a chunk's content and records terminal-frame stats.
func (a *Accumulator) Add(chunk StreamChunk) {
	a.builder.WriteString(chunk.Content)
	if chunk.Done {
		a.Model = chunk.Model
		a.DoneReason = chunk.DoneReason
		a.PromptTokens = chunk.PromptTokens
		a.CompletionTokens = chunk.CompletionTokens
	}
}

// String returns the accumulated response text.
func (a *Accumulator) String() string {
	return a.builder.String()
}

// Len returns the accumulated length in bytes.
func (a *Accumulator) Len() int {
	return a.builder.Len()
}
