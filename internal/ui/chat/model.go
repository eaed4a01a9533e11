// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	log "github.com/sirupsen/logrus"

	"github.com/jeranaias/bankbot/internal/session"
	"github.com/jeranaias/bankbot/internal/storage"
	"github.com/jeranaias/bankbot/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// Focus is the region that receives keys.
type Focus int

const (
	FocusInput   Focus = iota // typing a message
	FocusSidebar              // moving between conversations
)

// Mode is what enter and esc currently mean.
type Mode int

const (
	ModeChat          Mode = iota // enter sends
	ModeRename                    // enter applies the input as the title
	ModeConfirmDelete             // y deletes, n or esc keeps
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusWarning
	statusError
)

const (
	sidebarMinWidth = 18
	sidebarMaxWidth = 32
	inputHeight     = 3
	inputCharLimit  = 4000
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Options configures the chat screen.
type Options struct {
	// ShowHelp shows shortcut hints in the status line.
	ShowHelp bool
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	controller *session.Controller
	theme      *styles.Theme
	keys       KeyMap
	opts       Options

	// Dimensions
	width  int
	height int
	ready  bool

	focus Focus
	mode  Mode

	// Snapshots taken while no submission holds the controller.
	chats      []storage.Summary
	activeID   string
	transcript storage.Conversation
	rendered   string

	// UI Components
	viewport viewport.Model
	input    textarea.Model
	renderer *glamour.TermRenderer

	// Streaming
	streaming   bool
	pendingText string
	streamText  string
	streamStart time.Time
	buffer      *StreamingBuffer
	cancelMgr   *cancelManager

	// Status line
	status        string
	statusKind    statusKind
	warning       string
	showHelp      bool
	draft         string
	pendingDelete string
	generator     string
}

// New creates the chat model for controller.
func New(controller *session.Controller, theme *styles.Theme, opts Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about accounts, loans, cards..."
	ta.ShowLineNumbers = false
	ta.CharLimit = inputCharLimit
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	generator := "faq only"
	if g := controller.Responder().Generator; g != nil {
		generator = g.Name()
	}

	m := Model{
		controller: controller,
		theme:      theme,
		keys:       DefaultKeyMap(),
		opts:       opts,
		viewport:   viewport.New(0, 0),
		input:      ta,
		buffer:     NewStreamingBuffer(),
		cancelMgr:  newCancelManager(),
		generator:  generator,
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Focus returns the region that has keyboard focus.
func (m Model) Focus() Focus {
	return m.focus
}

// Mode returns the current input mode.
func (m Model) Mode() Mode {
	return m.mode
}

// Streaming reports whether a submission is running.
func (m Model) Streaming() bool {
	return m.streaming
}

// Status returns the status line text without styling.
func (m Model) Status() string {
	return m.status
}

// Warning returns the persistent warning, if any.
func (m Model) Warning() string {
	return m.warning
}

// ActiveID returns the id of the conversation on screen.
func (m Model) ActiveID() string {
	return m.activeID
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// refresh re-reads the sidebar and transcript from the controller. It is not
// called while a submission runs; the in-flight exchange is drawn from
// pendingText and streamText instead.
func (m *Model) refresh() {
	m.chats = m.controller.Conversations()
	m.activeID = m.controller.ActiveID()
	m.transcript = storage.Conversation{}
	if m.activeID != "" {
		conv, err := m.controller.Transcript(m.activeID)
		if err != nil {
			log.WithError(err).WithField("id", m.activeID).Warn("active conversation missing")
		} else {
			m.transcript = conv
		}
	}
	m.renderTranscript()
	m.syncViewport(true)
}

// cursor returns the sidebar index of the active conversation, or -1.
func (m Model) cursor() int {
	for i, c := range m.chats {
		if c.ID == m.activeID {
			return i
		}
	}
	return -1
}

func (m *Model) setStatus(kind statusKind, text string) {
	m.statusKind = kind
	m.status = text
}
