// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// Only the chat surface is implemented: a health check, the model list and
// streaming or non-streaming /api/chat requests.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - Message: Chat message with role and content
//   - ChatResponse: Complete (non-streaming) response with timing metrics
//   - StreamReader: NDJSON reader for streaming responses
//   - ClientError: typed failure (not running, timeout, model not found, ...)
//
// # Usage
//
//	client := ollama.NewClient()
//	resp, err := client.Chat(ctx, "llama3.2:1b", []ollama.Message{
//	    ollama.NewSystemMessage(persona),
//	    ollama.NewUserMessage("What is APR?"),
//	})
//
// For streaming responses:
//
//	err := client.ChatStream(ctx, model, messages, func(chunk ollama.StreamChunk) {
//	    fmt.Print(chunk.Content)
//	})
package ollama
