// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"github.com/google/uuid"

	"github.com/jeranaias/bankbot/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTitle is the title of a conversation that has not been named yet.
	// It also marks a conversation as eligible for title adoption.
	DefaultTitle = "New Chat"

	// DefaultGreeting is the assistant message every new conversation starts with.
	DefaultGreeting = "Hello! I'm BankBot — how can I help you today?"

	// TitleMaxRunes is how much of the first user message becomes the title.
	TitleMaxRunes = 30
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one transcript entry.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// UserMessage creates a message authored by the user.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// AssistantMessage creates a message authored by the assistant.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Text: text}
}

// =============================================================================
// CONVERSATION
// =============================================================================

// Conversation is a titled, append-only transcript.
type Conversation struct {
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// AdoptTitle replaces the default title with the first TitleMaxRunes
// characters of text. It reports whether the title changed. Only a
// conversation still titled DefaultTitle adopts.
func (c *Conversation) AdoptTitle(text string) bool {
	if c.Title != DefaultTitle || text == "" {
		return false
	}
	c.Title = util.PrefixRunes(text, TitleMaxRunes)
	return true
}

// LastMessage returns the most recent message, if any.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Summary is a lightweight view of a conversation used for listings.
type Summary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
	Active       bool   `json:"active"`
}

// =============================================================================
// HISTORY
// =============================================================================

// History is the complete persisted state: every conversation in insertion
// order plus the active conversation id.
//
// Invariant: activeID is either empty (no active conversation) or a key of
// convs. Every mutating method preserves it.
type History struct {
	order    []string
	convs    map[string]*Conversation
	activeID string
	greeting string
}

// NewHistory returns an empty history with no active conversation.
func NewHistory() *History {
	return &History{convs: make(map[string]*Conversation)}
}

// Len returns the number of conversations.
func (h *History) Len() int {
	return len(h.order)
}

// IDs returns conversation ids in display order.
func (h *History) IDs() []string {
	ids := make([]string, len(h.order))
	copy(ids, h.order)
	return ids
}

// Get returns the conversation with the given id.
func (h *History) Get(id string) (*Conversation, bool) {
	c, ok := h.convs[id]
	return c, ok
}

// ActiveID returns the active conversation id, or "" when there is none.
func (h *History) ActiveID() string {
	return h.activeID
}

// Active returns the active conversation and its id. The conversation is nil
// when nothing is active.
func (h *History) Active() (*Conversation, string) {
	if h.activeID == "" {
		return nil, ""
	}
	return h.convs[h.activeID], h.activeID
}

// Summaries returns one Summary per conversation in display order.
func (h *History) Summaries() []Summary {
	out := make([]Summary, 0, len(h.order))
	for _, id := range h.order {
		c := h.convs[id]
		out = append(out, Summary{
			ID:           id,
			Title:        c.Title,
			MessageCount: len(c.Messages),
			Active:       id == h.activeID,
		})
	}
	return out
}

// SetGreeting changes the first message of conversations created from now on.
// An empty greeting restores DefaultGreeting.
func (h *History) SetGreeting(greeting string) {
	h.greeting = greeting
}

// CreateNewChat adds a conversation seeded with the greeting, makes it active
// and returns its id. Ids are random v4 UUIDs.
func (h *History) CreateNewChat() string {
	id := uuid.NewString()
	for h.has(id) {
		id = uuid.NewString()
	}
	h.put(id, &Conversation{
		Title:    DefaultTitle,
		Messages: []Message{AssistantMessage(h.greetingText())},
	})
	h.activeID = id
	return id
}

// EnsureConversation creates a conversation when the history is empty, and
// activates the first one when none is active. It reports whether anything
// changed, so the caller knows to save.
func (h *History) EnsureConversation() bool {
	if h.Len() > 0 {
		if h.activeID != "" {
			return false
		}
		h.activeID = h.order[0]
		return true
	}
	h.CreateNewChat()
	return true
}

// SelectChat makes id the active conversation.
func (h *History) SelectChat(id string) error {
	if !h.has(id) {
		return notFound(id)
	}
	h.activeID = id
	return nil
}

// RenameChat sets the title of a conversation. Any string is accepted,
// including DefaultTitle, which makes the conversation eligible for title
// adoption again.
func (h *History) RenameChat(id, title string) error {
	c, ok := h.convs[id]
	if !ok {
		return notFound(id)
	}
	c.Title = title
	return nil
}

// DeleteChat removes a conversation. When it was active, the first remaining
// conversation becomes active, or a new one is created if none remain. It
// returns the active id after the deletion.
func (h *History) DeleteChat(id string) (string, error) {
	if !h.has(id) {
		return "", notFound(id)
	}
	delete(h.convs, id)
	for i, existing := range h.order {
		if existing == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	if h.activeID == id {
		h.activeID = ""
		if len(h.order) > 0 {
			h.activeID = h.order[0]
		} else {
			h.CreateNewChat()
		}
	}
	return h.activeID, nil
}

// Append adds a message to the end of a conversation.
func (h *History) Append(id string, msg Message) error {
	c, ok := h.convs[id]
	if !ok {
		return notFound(id)
	}
	c.Messages = append(c.Messages, msg)
	return nil
}

// =============================================================================
// INTERNAL
// =============================================================================

func (h *History) greetingText() string {
	if h.greeting == "" {
		return DefaultGreeting
	}
	return h.greeting
}

func (h *History) has(id string) bool {
	_, ok := h.convs[id]
	return ok
}

// put inserts or replaces a conversation, keeping the original position of an
// existing id.
func (h *History) put(id string, c *Conversation) {
	if !h.has(id) {
		h.order = append(h.order, id)
	}
	h.convs[id] = c
}

// repairActive restores the active-id invariant after a load. A missing or
// unknown id falls back to the first conversation, or to none.
func (h *History) repairActive() bool {
	if h.activeID != "" && h.has(h.activeID) {
		return false
	}
	if h.activeID == "" && len(h.order) == 0 {
		return false
	}
	h.activeID = ""
	if len(h.order) > 0 {
		h.activeID = h.order[0]
	}
	return true
}
