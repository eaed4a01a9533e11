// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jeranaias/bankbot/internal/storage"
)

// ErrEmptyMessage is returned by Submit for blank input. Nothing is recorded.
var ErrEmptyMessage = errors.New("message is empty")

var errNoActive = errors.New("no active conversation")

// =============================================================================
// OBSERVER
// =============================================================================

// Observer receives notifications for instrumentation. Implementations must
// not call back into the Controller.
type Observer interface {
	MessageAnswered(Outcome)
	HistorySaved(elapsed time.Duration, err error)
	ConversationCountChanged(n int)
}

type nopObserver struct{}

func (nopObserver) MessageAnswered(Outcome) {}
func (nopObserver) HistorySaved(time.Duration, error) {}
func (nopObserver) ConversationCountChanged(int) {}

// Options configures a Controller.
type Options struct {
	Observer Observer

	// Greeting seeds new conversations (default storage.DefaultGreeting).
	Greeting string
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller is a chat session over a persisted history.
type Controller struct {
	submitMu  sync.Mutex // one submission at a time
	mu        sync.Mutex // guards history
	store     *storage.HistoryStore
	history   *storage.History
	responder Responder
	observer  Observer
}

// New creates a controller over an already loaded history.
func New(store *storage.HistoryStore, history *storage.History, responder Responder, opts Options) *Controller {
	obs := opts.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	history.SetGreeting(opts.Greeting)
	return &Controller{
		store:     store,
		history:   history,
		responder: responder,
		observer:  obs,
	}
}

// Open loads the history and makes sure it holds at least one conversation,
// saving immediately if one had to be created.
func Open(store *storage.HistoryStore, responder Responder, opts Options) (*Controller, error) {
	history, err := store.Load()
	if err != nil {
		return nil, err
	}

	c := New(store, history, responder, opts)
	if history.EnsureConversation() {
		log.WithField("id", history.ActiveID()).Debug("created initial conversation")
		if err := c.save(); err != nil {
			return nil, err
		}
	}
	c.observer.ConversationCountChanged(history.Len())
	return c, nil
}

// Responder returns the routing used for messages.
func (c *Controller) Responder() Responder {
	return c.responder
}

// =============================================================================
// MESSAGES
// =============================================================================

// Submit answers text in the active conversation. See SubmitTo.
func (c *Controller) Submit(ctx context.Context, text string, onDelta func(string)) (Outcome, error) {
	return c.SubmitTo(ctx, "", text, onDelta)
}

// SubmitTo makes id the active conversation (unless id is empty) and answers
// text in it.
//
// The user message is recorded first. An out-of-domain message gets the
// refusal and one save. An in-domain message is saved before the reply is
// produced and again after the reply is appended. A failed generation is
// recorded as an "Error from AI: ..." reply, not returned as an error; only
// persistence failures and unknown ids are.
//
// Submissions run one at a time. The history lock is released while a reply
// is generated, so queries and conversation actions are not held up by a
// slow model. If the conversation is deleted meanwhile the reply is dropped
// and ErrConversationNotFound is returned.
func (c *Controller) SubmitTo(ctx context.Context, id, text string, onDelta func(string)) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, ErrEmptyMessage
	}

	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	out, done, err := c.recordUserMessage(ctx, id, text)
	if err != nil || done {
		return out, err
	}

	routed := c.responder.Respond(ctx, text, onDelta)
	routed.ConversationID, routed.TitleChanged = out.ConversationID, out.TitleChanged

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.history.Append(out.ConversationID, storage.AssistantMessage(routed.Reply)); err != nil {
		log.WithField("id", out.ConversationID).Warn("conversation deleted while the reply was generated")
		return routed, err
	}
	if err := c.save(); err != nil {
		return routed, err
	}
	c.answered(routed)
	return routed, nil
}

// recordUserMessage appends text to the target conversation under the history
// lock. Out-of-domain messages are answered here too; done reports that the
// submission is complete.
func (c *Controller) recordUserMessage(ctx context.Context, id, text string) (out Outcome, done bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id != "" {
		if err := c.history.SelectChat(id); err != nil {
			return Outcome{}, true, err
		}
	}
	if c.history.EnsureConversation() {
		c.observer.ConversationCountChanged(c.history.Len())
	}
	conv, activeID := c.history.Active()
	if conv == nil {
		return Outcome{}, true, errNoActive
	}

	out = Outcome{ConversationID: activeID}
	out.TitleChanged = conv.AdoptTitle(text)
	if err := c.history.Append(activeID, storage.UserMessage(text)); err != nil {
		return out, true, err
	}

	if !c.responder.InDomain(text) {
		routed := c.responder.Respond(ctx, text, nil)
		routed.ConversationID, routed.TitleChanged = activeID, out.TitleChanged
		if err := c.history.Append(activeID, storage.AssistantMessage(routed.Reply)); err != nil {
			return routed, true, err
		}
		if err := c.save(); err != nil {
			return routed, true, err
		}
		c.answered(routed)
		return routed, true, nil
	}

	return out, false, c.save()
}

func (c *Controller) answered(out Outcome) {
	log.WithFields(log.Fields{
		"id":      out.ConversationID,
		"route":   out.Route,
		"keyword": out.Keyword,
		"elapsed": out.Elapsed,
	}).Info("message answered")
	c.observer.MessageAnswered(out)
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// NewChat creates a conversation, makes it active and saves.
func (c *Controller) NewChat() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.history.CreateNewChat()
	c.observer.ConversationCountChanged(c.history.Len())
	return id, c.save()
}

// SelectChat makes id the active conversation and saves.
func (c *Controller) SelectChat(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.history.SelectChat(id); err != nil {
		return err
	}
	return c.save()
}

// RenameChat sets a conversation's title and saves.
func (c *Controller) RenameChat(id, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.history.RenameChat(id, title); err != nil {
		return err
	}
	return c.save()
}

// DeleteChat removes a conversation, saves, and returns the active id
// afterwards (a fresh conversation when the last one was deleted).
func (c *Controller) DeleteChat(id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	active, err := c.history.DeleteChat(id)
	if err != nil {
		return "", err
	}
	c.observer.ConversationCountChanged(c.history.Len())
	return active, c.save()
}

// =============================================================================
// QUERIES
// =============================================================================

// ActiveID returns the active conversation id.
func (c *Controller) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.ActiveID()
}

// Conversations lists conversation summaries in display order.
func (c *Controller) Conversations() []storage.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Summaries()
}

// Transcript returns a copy of a conversation. An empty id means the active one.
func (c *Controller) Transcript(id string) (storage.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == "" {
		id = c.history.ActiveID()
	}
	conv, ok := c.history.Get(id)
	if !ok {
		return storage.Conversation{}, &storage.ConversationError{Message: storage.ErrConversationNotFound.Message, ID: id}
	}

	msgs := make([]storage.Message, len(conv.Messages))
	copy(msgs, conv.Messages)
	return storage.Conversation{Title: conv.Title, Messages: msgs}, nil
}

// HistoryPath returns the file the history is saved to.
func (c *Controller) HistoryPath() string {
	return c.store.Path
}

func (c *Controller) save() error {
	start := time.Now()
	err := c.store.Save(c.history)
	c.observer.HistorySaved(time.Since(start), err)
	if err != nil {
		log.WithError(err).WithField("path", c.store.Path).Error("failed to save history")
	}
	return err
}
