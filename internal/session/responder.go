// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jeranaias/bankbot/internal/banking"
	"github.com/jeranaias/bankbot/internal/reply"
)

// =============================================================================
// ROUTING
// =============================================================================

// Route records how a message was answered.
type Route string

const (
	RouteRefused Route = "refused" // out of domain, canned refusal
	RouteFAQ     Route = "faq"     // answered from the FAQ
	RouteModel   Route = "model"   // answered by the generator
	RouteError   Route = "error"   // generator failed, error text recorded
)

// Outcome describes one answered message.
type Outcome struct {
	ConversationID string
	Route          Route
	Reply          string
	Keyword        string     // classifier keyword that matched, if any
	ErrorKind      reply.Kind // valid when Route is RouteError
	TitleChanged   bool
	Elapsed        time.Duration
}

// Responder decides the reply to a single message. It holds no state and is
// safe for concurrent use when its parts are.
type Responder struct {
	Classifier *banking.Classifier
	FAQ        *banking.FAQ
	Generator  reply.Generator

	// Refusal is the reply to out-of-domain messages (default banking.DefaultRefusal).
	Refusal string
}

// Respond routes text: out-of-domain messages get the refusal, in-domain ones
// the first matching FAQ answer or else a generated reply. Generation failures
// are not errors here; they produce RouteError with the described failure as
// the reply. onDelta, when set, receives streamed fragments of a generated reply.
func (r Responder) Respond(ctx context.Context, text string, onDelta func(string)) Outcome {
	start := time.Now()
	out := r.route(ctx, text, onDelta)
	out.Elapsed = time.Since(start)
	return out
}

// InDomain reports whether text passes the classifier.
func (r Responder) InDomain(text string) bool {
	return r.Classifier.IsInDomain(text)
}

func (r Responder) route(ctx context.Context, text string, onDelta func(string)) Outcome {
	keyword, ok := r.Classifier.Match(text)
	if !ok {
		return Outcome{Route: RouteRefused, Reply: r.refusal()}
	}

	if answer, ok := r.FAQ.Resolve(text); ok {
		return Outcome{Route: RouteFAQ, Reply: answer, Keyword: keyword}
	}

	if r.Generator == nil {
		err := &reply.Error{Kind: reply.KindUnavailable, Message: "no reply generator configured"}
		return Outcome{Route: RouteError, Reply: reply.Describe(err), Keyword: keyword, ErrorKind: err.Kind}
	}

	generated, err := reply.Stream(ctx, r.Generator, text, onDelta)
	if err != nil {
		kind := reply.KindOf(err)
		log.WithFields(log.Fields{
			"generator": r.Generator.Name(),
			"kind":      kind.String(),
		}).WithError(err).Warn("reply generation failed")
		return Outcome{Route: RouteError, Reply: reply.Describe(err), Keyword: keyword, ErrorKind: kind}
	}
	return Outcome{Route: RouteModel, Reply: generated, Keyword: keyword}
}

func (r Responder) refusal() string {
	if r.Refusal == "" {
		return banking.DefaultRefusal
	}
	return r.Refusal
}
