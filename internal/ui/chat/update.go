// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/jeranaias/bankbot/internal/session"
	"github.com/jeranaias/bankbot/internal/util"
)

const busyStatus = "Wait for the reply to finish (esc cancels)"

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case streamTickMsg:
		if !m.streaming {
			return m, nil
		}
		if text, ok := m.buffer.Flush(); ok {
			m.streamText += text
		}
		m.syncViewport(true)
		return m, streamTickCmd()

	case submitDoneMsg:
		return m.handleSubmitDone(msg), nil

	case ExternalChangeMsg:
		if msg.Removed {
			m.warning = "history file was removed; the next message recreates it"
		} else {
			m.warning = "history file changed in another window; the next message overwrites it"
		}
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancelMgr.cancel()
		return m, tea.Quit
	}

	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Cancel) {
			m.showHelp = false
		}
		return m, nil
	}

	switch m.mode {
	case ModeConfirmDelete:
		return m.handleConfirmDelete(msg)
	case ModeRename:
		return m.handleRenameKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		if m.streaming && m.cancelMgr.cancel() {
			m.setStatus(statusWarning, "Canceling...")
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.SwitchFocus):
		return m.toggleFocus()

	case key.Matches(msg, m.keys.NewChat):
		return m.newChat()

	case key.Matches(msg, m.keys.Rename):
		return m.startRename()

	case key.Matches(msg, m.keys.Delete):
		return m.startDelete()
	}

	if m.focus == FocusSidebar {
		switch {
		case key.Matches(msg, m.keys.Up):
			return m.moveSelection(-1)
		case key.Matches(msg, m.keys.Down):
			return m.moveSelection(1)
		}
		return m, nil
	}

	if key.Matches(msg, m.keys.Send) {
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) toggleFocus() (tea.Model, tea.Cmd) {
	if m.focus == FocusInput {
		m.focus = FocusSidebar
		m.input.Blur()
		return m, nil
	}
	m.focus = FocusInput
	return m, m.input.Focus()
}

// =============================================================================
// CONVERSATION ACTIONS
// =============================================================================

func (m Model) newChat() (tea.Model, tea.Cmd) {
	if m.streaming {
		m.setStatus(statusWarning, busyStatus)
		return m, nil
	}
	if _, err := m.controller.NewChat(); err != nil {
		m.setStatus(statusError, "Failed to save history: "+err.Error())
	} else {
		m.setStatus(statusInfo, "Started a new chat")
	}
	m.refresh()
	return m, nil
}

func (m Model) moveSelection(delta int) (tea.Model, tea.Cmd) {
	if m.streaming {
		m.setStatus(statusWarning, busyStatus)
		return m, nil
	}
	if len(m.chats) == 0 {
		return m, nil
	}
	next := m.cursor() + delta
	if next < 0 || next >= len(m.chats) {
		return m, nil
	}
	if err := m.controller.SelectChat(m.chats[next].ID); err != nil {
		m.setStatus(statusError, err.Error())
	}
	m.refresh()
	return m, nil
}

func (m Model) startRename() (tea.Model, tea.Cmd) {
	if m.streaming {
		m.setStatus(statusWarning, busyStatus)
		return m, nil
	}
	if m.activeID == "" {
		return m, nil
	}
	m.mode = ModeRename
	m.draft = m.input.Value()
	m.input.SetValue(m.transcript.Title)
	m.input.CursorEnd()
	m.focus = FocusInput
	m.setStatus(statusInfo, "Enter a new title (enter saves, esc cancels)")
	return m, m.input.Focus()
}

func (m Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.endRename()
		m.setStatus(statusInfo, "")
		return m, nil

	case key.Matches(msg, m.keys.Send):
		title := strings.TrimSpace(m.input.Value())
		if title == "" {
			m.setStatus(statusWarning, "Title cannot be empty")
			return m, nil
		}
		if err := m.controller.RenameChat(m.activeID, title); err != nil {
			m.setStatus(statusError, "Rename failed: "+err.Error())
		} else {
			m.setStatus(statusInfo, "Renamed to "+util.TruncateWidth(title, 40))
		}
		m.endRename()
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) endRename() {
	m.mode = ModeChat
	m.input.SetValue(m.draft)
	m.draft = ""
}

func (m Model) startDelete() (tea.Model, tea.Cmd) {
	if m.streaming {
		m.setStatus(statusWarning, busyStatus)
		return m, nil
	}
	if m.activeID == "" {
		return m, nil
	}
	m.mode = ModeConfirmDelete
	m.pendingDelete = m.activeID
	m.setStatus(statusWarning, fmt.Sprintf("Delete %q? (y/n)", util.TruncateWidth(m.transcript.Title, 40)))
	return m, nil
}

func (m Model) handleConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		if _, err := m.controller.DeleteChat(m.pendingDelete); err != nil {
			m.setStatus(statusError, "Delete failed: "+err.Error())
		} else {
			m.setStatus(statusInfo, "Chat deleted")
		}
		m.refresh()
	case key.Matches(msg, m.keys.Deny, m.keys.Cancel):
		m.setStatus(statusInfo, "")
	default:
		return m, nil
	}
	m.mode = ModeChat
	m.pendingDelete = ""
	return m, nil
}

// =============================================================================
// SUBMISSION
// =============================================================================

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.streaming {
		m.setStatus(statusWarning, busyStatus)
		return m, nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelMgr.set(cancel)
	m.buffer.Reset()
	m.streaming = true
	m.pendingText = text
	m.streamText = ""
	m.streamStart = time.Now()
	m.setStatus(statusInfo, "Thinking...")
	m.syncViewport(true)

	return m, tea.Batch(submitCmd(ctx, m.controller, m.activeID, text, m.buffer), streamTickCmd())
}

// submitCmd runs the submission off the UI loop. Fragments go to buffer.
func submitCmd(ctx context.Context, controller *session.Controller, id, text string, buffer *StreamingBuffer) tea.Cmd {
	return func() tea.Msg {
		out, err := controller.SubmitTo(ctx, id, text, buffer.Write)
		return submitDoneMsg{outcome: out, err: err}
	}
}

func (m Model) handleSubmitDone(msg submitDoneMsg) Model {
	m.cancelMgr.cancel()
	m.buffer.Reset()
	m.streaming = false
	m.pendingText = ""
	m.streamText = ""

	out := msg.outcome
	switch {
	case errors.Is(msg.err, session.ErrEmptyMessage):
		m.setStatus(statusInfo, "")
	case msg.err != nil:
		log.WithError(msg.err).Error("submission failed")
		m.setStatus(statusError, "Failed to save history: "+msg.err.Error())
	case out.Route == session.RouteRefused:
		m.setStatus(statusWarning, "Outside banking topics")
	case out.Route == session.RouteFAQ:
		m.setStatus(statusInfo, "Answered from the FAQ")
	case out.Route == session.RouteError:
		m.setStatus(statusError, "Generation failed ("+out.ErrorKind.String()+")")
	default:
		m.setStatus(statusInfo, fmt.Sprintf("Answered in %.1fs", out.Elapsed.Seconds()))
	}
	m.refresh()
	return m
}
