// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader handles line-by-line JSON parsing of streaming responses.
type StreamReader struct {
	reader  *bufio.Reader
	model   string
	sawDone bool
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// Process reads the stream and calls the callback for each chunk.
// Blocks until the stream is complete or the context is cancelled.
// A stream that ends without a done marker is reported as an invalid response.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := s.readChunk()
		if err != nil {
			if err == io.EOF {
				if s.sawDone {
					return nil
				}
				return &ClientError{Type: ErrTypeInvalidResponse, Message: "stream ended before completion"}
			}
			return err
		}
		if chunk == nil {
			continue
		}

		if chunk.Error != nil {
			return chunk.Error
		}
		if callback != nil {
			callback(*chunk)
		}
		if chunk.Done {
			return nil
		}
	}
}

// readChunk reads and parses a single line from the stream.
func (s *StreamReader) readChunk() (*StreamChunk, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) == 0 {
			return nil, io.EOF
		}
		// Try to process the last line even on EOF
		if len(line) == 0 {
			return nil, err
		}
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	var response struct {
		Model   string `json:"model"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		Done            bool   `json:"done"`
		DoneReason      string `json:"done_reason,omitempty"`
		TotalDuration   int64  `json:"total_duration,omitempty"`
		PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
		EvalCount       int    `json:"eval_count,omitempty"`
		EvalDuration    int64  `json:"eval_duration,omitempty"`
		Error           string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		// Skip malformed lines
		return nil, nil
	}

	if response.Error != "" {
		return &StreamChunk{Error: &ClientError{Type: ErrTypeInvalidResponse, Message: response.Error}}, nil
	}

	if response.Model != "" {
		s.model = response.Model
	}
	content := response.Message.Content

	chunk := &StreamChunk{
		Content:    content,
		Done:       response.Done,
		DoneReason: response.DoneReason,
		Model:      s.model,
	}

	if response.Done {
		s.sawDone = true
		chunk.TotalDuration = time.Duration(response.TotalDuration)
		chunk.EvalDuration = time.Duration(response.EvalDuration)
		chunk.PromptTokens = response.PromptEvalCount
		chunk.CompletionTokens = response.EvalCount
	}

	return chunk, nil
}

// =============================================================================
// STREAM ACCUMULATOR
// =============================================================================

// StreamAccumulator collects streaming chunks into the final reply.
type StreamAccumulator struct {
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	content strings.Builder
	start   time.Time
	ttft    time.Duration
	last    StreamChunk
}

// NewStreamAccumulator creates a new accumulator.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{start: time.Now()}
}

// Add processes a new chunk.
func (a *StreamAccumulator) Add(chunk StreamChunk) {
	if chunk.Content != "" && a.content.Len() == 0 {
		a.ttft = time.Since(a.start)
	}
	a.content.WriteString(chunk.Content)
	if chunk.Done {
		a.last = chunk
	}
}

// Content returns the accumulated content.
func (a *StreamAccumulator) Content() string {
	return a.content.String()
}

// TTFT returns the time to first token.
func (a *StreamAccumulator) TTFT() time.Duration {
	return a.ttft
}

// CompletionTokens returns the generated token count from the final chunk.
func (a *StreamAccumulator) CompletionTokens() int {
	return a.last.CompletionTokens
}
