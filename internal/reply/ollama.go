// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reply

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jeranaias/bankbot/internal/ollama"
)

// OllamaGenerator generates replies with a local Ollama server.
type OllamaGenerator struct {
	client       *ollama.Client
	model        string
	systemPrompt string
	timeout      time.Duration
}

// NewOllamaGenerator creates a generator on top of client.
func NewOllamaGenerator(client *ollama.Client, model, systemPrompt string, timeout time.Duration) *OllamaGenerator {
	if model == "" {
		model = client.DefaultModel()
	}
	return &OllamaGenerator{
		client:       client,
		model:        model,
		systemPrompt: systemPrompt,
		timeout:      timeout,
	}
}

// Name implements Generator.
func (g *OllamaGenerator) Name() string {
	return "ollama/" + g.model
}

func (g *OllamaGenerator) messages(prompt string) []ollama.Message {
	return []ollama.Message{
		ollama.NewSystemMessage(g.systemPrompt),
		ollama.NewUserMessage(prompt),
	}
}

// Generate implements Generator.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Chat(ctx, g.model, g.messages(prompt))
	if err != nil {
		return "", g.wrap(ctx, err)
	}

	log.WithFields(log.Fields{
		"model":      g.model,
		"tokens":     resp.EvalCount,
		"tok_per_s":  resp.TokensPerSecond(),
		"total_time": resp.TotalTime(),
	}).Debug("ollama reply generated")
	return resp.Message.Content, nil
}

// GenerateStream implements Streamer.
func (g *OllamaGenerator) GenerateStream(ctx context.Context, prompt string, onDelta func(string)) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	acc := ollama.NewStreamAccumulator()
	err := g.client.ChatStream(ctx, g.model, g.messages(prompt), func(chunk ollama.StreamChunk) {
		acc.Add(chunk)
		if chunk.Content != "" && onDelta != nil {
			onDelta(chunk.Content)
		}
	})
	if err != nil {
		return "", g.wrap(ctx, err)
	}

	log.WithFields(log.Fields{
		"model":  g.model,
		"tokens": acc.CompletionTokens(),
		"ttft":   acc.TTFT(),
	}).Debug("ollama reply streamed")
	return acc.Content(), nil
}

// Check implements Checker: Ollama must be running and the model pulled.
func (g *OllamaGenerator) Check(ctx context.Context) error {
	if err := g.client.CheckRunning(ctx); err != nil {
		return g.wrap(ctx, err)
	}
	ok, err := g.client.ModelExists(ctx, g.model)
	if err != nil {
		return g.wrap(ctx, err)
	}
	if !ok {
		return newError("ollama", KindModelNotFound, "model "+g.model+" is not pulled; run: ollama pull "+g.model, nil)
	}
	return nil
}

// wrap maps ollama client errors onto reply kinds.
func (g *OllamaGenerator) wrap(ctx context.Context, err error) error {
	const provider = "ollama"
	switch {
	case ollama.IsModelNotFound(err):
		return newError(provider, KindModelNotFound, "", err)
	case ollama.IsTimeout(err):
		return newError(provider, contextKind(ctx.Err(), KindTimeout), "", err)
	case ollama.IsInvalidResponse(err):
		return newError(provider, KindBadResponse, "", err)
	case ollama.IsNotRunning(err):
		return newError(provider, KindUnavailable, "cannot reach Ollama at "+strings.TrimPrefix(g.client.BaseURL(), "http://"), nil)
	default:
		return newError(provider, KindUnavailable, "", err)
	}
}
