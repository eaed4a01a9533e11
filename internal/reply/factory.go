// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reply

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/bankbot/internal/ollama"
)

// Provider names accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Providers lists the supported provider names.
var Providers = []string{ProviderOllama, ProviderOpenAI, ProviderGemini}

// Options selects and configures a provider.
type Options struct {
	Provider     string
	Model        string
	SystemPrompt string
	Timeout      time.Duration

	OllamaURL     string
	OpenAIBaseURL string
	OpenAIAPIKey  string
	GeminiAPIKey  string
	GeminiBaseURL string
}

// New builds the generator named by opts.Provider (default: ollama).
func New(ctx context.Context, opts Options) (Generator, error) {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}

	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", ProviderOllama:
		client := ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL:      opts.OllamaURL,
			DefaultModel: opts.Model,
		})
		return NewOllamaGenerator(client, opts.Model, opts.SystemPrompt, opts.Timeout), nil

	case ProviderOpenAI:
		if opts.Model == "" {
			return nil, fmt.Errorf("openai provider requires a model")
		}
		return NewOpenAIGenerator(opts.OpenAIBaseURL, opts.OpenAIAPIKey, opts.Model, opts.SystemPrompt, opts.Timeout), nil

	case ProviderGemini:
		return NewGeminiGenerator(ctx, opts.GeminiAPIKey, opts.GeminiBaseURL, opts.Model, opts.SystemPrompt, opts.Timeout)

	default:
		return nil, fmt.Errorf("unknown provider %q (supported: %s)", opts.Provider, strings.Join(Providers, ", "))
	}
}
