// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/jeranaias/bankbot/internal/banking"
	"github.com/jeranaias/bankbot/internal/reply"
	"github.com/jeranaias/bankbot/internal/session"
	"github.com/jeranaias/bankbot/internal/storage"
)

// =============================================================================
// COMPONENT WIRING
// =============================================================================

// generator builds the configured reply generator.
func (a *app) generator(ctx context.Context) (reply.Generator, error) {
	gen, err := reply.New(ctx, reply.Options{
		Provider:      a.cfg.Generation.Provider,
		Model:         a.cfg.Generation.Model,
		SystemPrompt:  a.cfg.Generation.SystemPrompt,
		Timeout:       a.cfg.Timeout(),
		OllamaURL:     a.cfg.Ollama.URL,
		OpenAIBaseURL: a.cfg.OpenAI.BaseURL,
		OpenAIAPIKey:  a.cfg.OpenAI.APIKey,
		GeminiAPIKey:  a.cfg.Gemini.APIKey,
		GeminiBaseURL: a.cfg.Gemini.BaseURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "configure reply generator")
	}
	return gen, nil
}

// faq loads the FAQ file. A file that cannot be parsed is reported and the
// session continues without an FAQ.
func (a *app) faq() *banking.FAQ {
	faq, err := banking.LoadFAQ(a.cfg.FAQPath())
	if err != nil {
		log.WithError(err).WithField("path", a.cfg.FAQPath()).Warn("FAQ unavailable, continuing without it")
		return banking.NewFAQ()
	}
	log.WithFields(log.Fields{
		"path":    a.cfg.FAQPath(),
		"entries": faq.Len(),
	}).Debug("FAQ loaded")
	return faq
}

func (a *app) classifier() *banking.Classifier {
	keywords := a.cfg.Banking.Keywords
	if len(keywords) == 0 {
		keywords = banking.DefaultKeywords
	}
	return banking.NewClassifier(keywords)
}

// responder assembles the routing for messages.
func (a *app) responder(ctx context.Context) (session.Responder, error) {
	gen, err := a.generator(ctx)
	if err != nil {
		return session.Responder{}, err
	}
	return session.Responder{
		Classifier: a.classifier(),
		FAQ:        a.faq(),
		Generator:  gen,
		Refusal:    a.cfg.Banking.Refusal,
	}, nil
}

// store returns the history store. Controller and watcher must share one
// instance so the watcher can tell this process's saves from foreign ones.
func (a *app) store() *storage.HistoryStore {
	if a.history == nil {
		a.history = storage.NewHistoryStore(a.cfg.HistoryPath())
	}
	return a.history
}

// openController loads the history and builds a session controller.
func (a *app) openController(ctx context.Context, obs session.Observer) (*session.Controller, error) {
	responder, err := a.responder(ctx)
	if err != nil {
		return nil, err
	}
	warnIfNotReady(ctx, responder.Generator)
	ctrl, err := session.Open(a.store(), responder, session.Options{
		Observer: obs,
		Greeting: a.cfg.Banking.Greeting,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open chat history")
	}
	return ctrl, nil
}

// readinessTimeout bounds the startup check of the generator backend.
const readinessTimeout = 3 * time.Second

// warnIfNotReady logs when the generator's backend is down or missing the
// model. Startup continues: each question then records the error reply.
func warnIfNotReady(ctx context.Context, gen reply.Generator) {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	if err := reply.Check(ctx, gen); err != nil {
		log.WithError(err).WithField("generator", gen.Name()).Warn("reply generator not ready")
	}
}

// openManager opens the history for commands that never generate replies,
// so a missing provider credential does not block them.
func (a *app) openManager() (*session.Controller, error) {
	ctrl, err := session.Open(a.store(), session.Responder{
		Classifier: a.classifier(),
		FAQ:        a.faq(),
		Refusal:    a.cfg.Banking.Refusal,
	}, session.Options{Greeting: a.cfg.Banking.Greeting})
	if err != nil {
		return nil, errors.Wrap(err, "open chat history")
	}
	return ctrl, nil
}
