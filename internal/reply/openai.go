// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reply

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	log "github.com/sirupsen/logrus"
)

// OpenAIGenerator generates replies with any OpenAI-compatible chat
// completions endpoint (OpenAI, vLLM, llama.cpp server, LM Studio, ...).
type OpenAIGenerator struct {
	client       *openai.Client
	model        string
	systemPrompt string
	timeout      time.Duration
}

// NewOpenAIGenerator creates a generator. An empty apiKey sends
// unauthenticated requests, which local servers usually accept.
func NewOpenAIGenerator(baseURL, apiKey, model, systemPrompt string, timeout time.Duration) *OpenAIGenerator {
	options := []option.RequestOption{option.WithMaxRetries(1)}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	if apiKey == "" {
		log.Info("no OpenAI API key configured, will try unauthenticated access")
	} else {
		options = append(options, option.WithAPIKey(apiKey))
	}

	client := openai.NewClient(options...)
	return &OpenAIGenerator{
		client:       &client,
		model:        model,
		systemPrompt: systemPrompt,
		timeout:      timeout,
	}
}

// Name implements Generator.
func (g *OpenAIGenerator) Name() string {
	return "openai/" + g.model
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	const provider = "openai"

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(g.systemPrompt),
			openai.UserMessage(prompt),
		},
		Model: g.model,
	})
	if err != nil {
		return "", newError(provider, classifyOpenAI(ctx, err), "", err)
	}

	if len(resp.Choices) == 0 {
		return "", newError(provider, KindBadResponse, "client didn't return any content choices", nil)
	}

	log.WithFields(log.Fields{
		"model":  resp.Model,
		"tokens": resp.Usage.CompletionTokens,
	}).Debug("openai reply generated")
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAI(ctx context.Context, err error) Kind {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextKind(ctxErr, KindTimeout)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return KindModelNotFound
		case apiErr.StatusCode == http.StatusRequestTimeout || apiErr.StatusCode == http.StatusGatewayTimeout:
			return KindTimeout
		case apiErr.StatusCode >= 500, apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
			return KindUnavailable
		default:
			return KindBadResponse
		}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindBadResponse
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindUnavailable
	}
	return contextKind(err, KindUnavailable)
}
