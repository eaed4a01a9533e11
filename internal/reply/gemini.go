// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reply

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when the gemini provider has no model configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiGenerator generates replies with Google's Gemini API.
type GeminiGenerator struct {
	client       *genai.Client
	model        string
	systemPrompt string
	timeout      time.Duration
}

// NewGeminiGenerator creates a generator. baseURL overrides the API endpoint
// and is normally empty.
func NewGeminiGenerator(ctx context.Context, apiKey, baseURL, model, systemPrompt string, timeout time.Duration) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiGenerator{
		client:       client,
		model:        model,
		systemPrompt: systemPrompt,
		timeout:      timeout,
	}, nil
}

// Name implements Generator.
func (g *GeminiGenerator) Name() string {
	return "gemini/" + g.model
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	const provider = "gemini"

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(g.systemPrompt, genai.RoleUser),
	})
	if err != nil {
		return "", newError(provider, classifyGemini(ctx, err), "", err)
	}

	if len(resp.Candidates) == 0 {
		return "", newError(provider, KindBadResponse, "response has no candidates", nil)
	}
	text := resp.Text()
	if text == "" {
		reason := ""
		if resp.Candidates[0] != nil {
			reason = string(resp.Candidates[0].FinishReason)
		}
		return "", newError(provider, KindBadResponse, "response has no text (finish reason "+reason+")", nil)
	}

	log.WithField("model", g.model).Debug("gemini reply generated")
	return text, nil
}

func classifyGemini(ctx context.Context, err error) Kind {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextKind(ctxErr, KindTimeout)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return KindModelNotFound
		case apiErr.Code == http.StatusRequestTimeout || apiErr.Code == http.StatusGatewayTimeout:
			return KindTimeout
		case apiErr.Code >= 500, apiErr.Code == http.StatusTooManyRequests,
			apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden:
			return KindUnavailable
		default:
			return KindBadResponse
		}
	}
	return contextKind(err, KindUnavailable)
}
