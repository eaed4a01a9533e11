// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reply generates assistant replies with an external language model.
//
// Every provider sends the same two-message sequence: the system instruction
// followed by the user's question. Failures are returned as *Error values
// with a Kind; turning them into user-visible text is left to the caller (see
// Describe).
package reply

import (
	"context"
	"errors"
	"time"
)

// DefaultSystemPrompt is the banking persona sent as the system instruction.
const DefaultSystemPrompt = `You are BankBot, an AI assistant specialized in banking and financial services.
Answer only questions related to banking, bank accounts, loans, credit cards, interest rates,
transactions, and other finance-related topics.
If a user asks something unrelated to banking, politely respond:
"I'm sorry, I can only answer banking-related questions."`

// DescribePrefix starts every user-visible generation failure.
const DescribePrefix = "Error from AI: "

// =============================================================================
// GENERATOR
// =============================================================================

// Generator produces a reply for a single question.
type Generator interface {
	// Generate returns the reply text or an *Error.
	Generate(ctx context.Context, prompt string) (string, error)

	// Name identifies the provider and model, e.g. "ollama/llama3.2:1b".
	Name() string
}

// Streamer is implemented by generators that can deliver partial output.
// onDelta receives display-only fragments; the returned string is the full reply.
type Streamer interface {
	Generator
	GenerateStream(ctx context.Context, prompt string, onDelta func(string)) (string, error)
}

// Checker is implemented by generators that can verify their backend is
// ready before any question is asked.
type Checker interface {
	Check(ctx context.Context) error
}

// Check verifies g's backend when g supports it. Generators without a
// readiness check always pass.
func Check(ctx context.Context, g Generator) error {
	if c, ok := g.(Checker); ok {
		return c.Check(ctx)
	}
	return nil
}

// Stream generates a reply, streaming through onDelta when g supports it.
// Otherwise the complete reply is delivered to onDelta once.
func Stream(ctx context.Context, g Generator, prompt string, onDelta func(string)) (string, error) {
	if onDelta == nil {
		return g.Generate(ctx, prompt)
	}
	if s, ok := g.(Streamer); ok {
		return s.GenerateStream(ctx, prompt, onDelta)
	}
	text, err := g.Generate(ctx, prompt)
	if err == nil && text != "" {
		onDelta(text)
	}
	return text, err
}

// =============================================================================
// ERRORS
// =============================================================================

// Kind classifies a generation failure.
type Kind int

const (
	// KindUnavailable: the service could not be reached or refused the request.
	KindUnavailable Kind = iota
	// KindTimeout: the request exceeded its deadline.
	KindTimeout
	// KindCanceled: the caller gave up on the request.
	KindCanceled
	// KindModelNotFound: the configured model does not exist on the service.
	KindModelNotFound
	// KindBadResponse: the service answered with something unusable.
	KindBadResponse
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindModelNotFound:
		return "model_not_found"
	case KindBadResponse:
		return "bad_response"
	default:
		return "unknown"
	}
}

// Error is a failed generation.
type Error struct {
	Kind     Kind
	Provider string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Message != "" {
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the Kind of err. Errors that are not *Error are treated as
// unavailable, except context errors.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return contextKind(err, KindUnavailable)
}

// Describe renders err for the transcript, e.g. "Error from AI: model not found".
func Describe(err error) string {
	if err == nil {
		return ""
	}
	return DescribePrefix + err.Error()
}

func newError(provider string, kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Message: msg, Cause: cause}
}

// contextKind maps context errors to their Kind and leaves others at fallback.
func contextKind(err error, fallback Kind) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return fallback
	}
}

// withTimeout bounds ctx by d when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
