// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session runs a chat session over the persisted history.
//
// The Controller owns the loaded History for the lifetime of the process. It
// routes each submitted message (refusal, FAQ answer or generated reply),
// appends both sides of the exchange to the active conversation and saves the
// whole history after every mutation.
//
// # Key Types
//
//   - Controller: stateful session over a HistoryStore
//   - Responder: stateless routing used by the controller and one-shot queries
//   - Outcome: how a message was answered
//
// # Usage
//
//	ctrl, err := session.Open(store, session.Responder{
//	    Classifier: banking.NewClassifier(banking.DefaultKeywords),
//	    FAQ:        faq,
//	    Generator:  gen,
//	}, session.Options{})
//	outcome, err := ctrl.Submit(ctx, "What is my account balance?", nil)
//
// # Concurrency
//
// Controller methods are serialized by a mutex, so one message is fully
// answered and saved before the next is handled. Nothing coordinates two
// processes sharing a history file.
package session
