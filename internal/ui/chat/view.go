// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	log "github.com/sirupsen/logrus"

	"github.com/jeranaias/bankbot/internal/storage"
	"github.com/jeranaias/bankbot/internal/ui/styles"
	"github.com/jeranaias/bankbot/internal/util"
)

// =============================================================================
// LAYOUT
// =============================================================================

func (m Model) sidebarWidth() int {
	w := m.width / 4
	if w < sidebarMinWidth {
		w = sidebarMinWidth
	}
	if w > sidebarMaxWidth {
		w = sidebarMaxWidth
	}
	return w
}

func (m Model) mainWidth() int {
	w := m.width - m.sidebarWidth()
	if w < 10 {
		w = 10
	}
	return w
}

// bodyHeight is everything between the header and the status line.
func (m Model) bodyHeight() int {
	h := m.height - 2
	if h < inputHeight+3 {
		h = inputHeight + 3
	}
	return h
}

// resize applies a new terminal size to the components and rebuilds the
// markdown renderer for the new wrap width.
func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.ready = true

	main := m.mainWidth()
	m.input.SetWidth(main - 2)
	m.viewport.Width = main
	m.viewport.Height = m.bodyHeight() - inputHeight - 2

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.theme.Name),
		glamour.WithWordWrap(main-4),
	)
	if err != nil {
		log.WithError(err).Warn("markdown renderer unavailable")
	}
	m.renderer = r
	m.renderTranscript()
	m.syncViewport(true)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders the snapshot once; frames reuse the result.
func (m *Model) renderTranscript() {
	var b strings.Builder
	for _, msg := range m.transcript.Messages {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	m.rendered = b.String()
}

func (m Model) renderMessage(msg storage.Message) string {
	if msg.Role == storage.RoleUser {
		return m.theme.UserLabel.Render("You") + "\n" + m.theme.UserText.Render(msg.Text) + "\n"
	}
	return m.theme.AssistantLabel.Render("BankBot") + "\n" + m.markdown(msg.Text)
}

func (m Model) markdown(text string) string {
	if m.renderer == nil {
		return m.theme.UserText.Render(text) + "\n"
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		log.WithError(err).Debug("markdown render failed")
		return m.theme.UserText.Render(text) + "\n"
	}
	return out
}

// syncViewport puts the transcript plus any in-flight exchange into the
// viewport.
func (m *Model) syncViewport(toBottom bool) {
	content := m.rendered
	if m.streaming {
		content += m.renderMessage(storage.UserMessage(m.pendingText)) + "\n"
		content += m.theme.AssistantLabel.Render("BankBot") + "\n"
		if m.streamText == "" {
			content += m.theme.Streaming.Render(fmt.Sprintf("Thinking... %.1fs", time.Since(m.streamStart).Seconds()))
		} else {
			content += m.theme.Streaming.Render(m.streamText)
		}
		content += "\n"
	}
	m.viewport.SetContent(content)
	if toBottom {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading BankBot..."
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderSidebar(),
		lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), m.renderInput()),
	)
	if m.showHelp {
		body = m.renderHelp()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderStatus())
}

func (m Model) renderHeader() string {
	title := m.transcript.Title
	if title == "" {
		title = storage.DefaultTitle
	}
	left := m.theme.HeaderBrand.Render("BankBot") + "  " + m.theme.HeaderInfo.Render(util.TruncateWidth(title, m.width/2))
	right := m.theme.HeaderInfo.Render(m.generator)
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderSidebar() string {
	width := m.sidebarWidth()
	inner := width - 4
	height := m.bodyHeight() - 2

	var rows []string
	rows = append(rows, m.theme.SidebarTitle.Render(fmt.Sprintf("Chats (%d)", len(m.chats))))

	visible := height - 2
	start := 0
	if c := m.cursor(); c >= visible && visible > 0 {
		start = c - visible + 1
	}
	for i := start; i < len(m.chats) && len(rows) <= visible; i++ {
		c := m.chats[i]
		marker := styles.IndicatorIdle
		if c.ID == m.activeID {
			marker = styles.IndicatorActive
		}
		label := util.PadWidth(util.TruncateWidth(marker+" "+c.Title, inner), inner)
		switch {
		case c.ID == m.activeID && m.focus == FocusSidebar:
			rows = append(rows, m.theme.SidebarSelected.Render(label))
		case c.ID == m.activeID:
			rows = append(rows, m.theme.SidebarActive.Render(label))
		default:
			rows = append(rows, m.theme.SidebarItem.Render(label))
		}
	}

	style := m.theme.Sidebar
	if m.focus == FocusSidebar {
		style = m.theme.SidebarFocused
	}
	return style.Width(width - 2).Height(height).Render(strings.Join(rows, "\n"))
}

func (m Model) renderInput() string {
	style := m.theme.Input
	if m.focus == FocusInput {
		style = m.theme.InputFocused
	}
	view := m.input.View()
	if m.mode == ModeRename {
		view = m.theme.InputPrompt.Render("Rename:") + "\n" + view
	}
	return style.Width(m.mainWidth() - 2).Render(view)
}

func (m Model) renderStatus() string {
	var parts []string

	if m.warning != "" {
		parts = append(parts, m.theme.StatusWarning.Render(styles.IndicatorWarning+" "+m.warning))
	}
	switch m.statusKind {
	case statusError:
		parts = append(parts, m.theme.StatusError.Render(styles.IndicatorError+" "+m.status))
	case statusWarning:
		parts = append(parts, m.theme.StatusWarning.Render(m.status))
	default:
		if m.status != "" {
			parts = append(parts, m.theme.StatusInfo.Render(m.status))
		}
	}
	if m.opts.ShowHelp && m.mode == ModeChat {
		var hints []string
		for _, b := range m.keys.ShortHelp() {
			hints = append(hints, m.theme.ShortcutKey.Render(b.Help().Key)+" "+m.theme.ShortcutDesc.Render(b.Help().Desc))
		}
		parts = append(parts, strings.Join(hints, "  "))
	}

	line := strings.Join(parts, " | ")
	return m.theme.StatusBar.Width(m.width).MaxHeight(1).Render(line)
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(m.theme.SidebarTitle.Render("Keyboard shortcuts"))
	b.WriteString("\n")
	for _, group := range m.keys.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %s  %s\n",
				m.theme.ShortcutKey.Render(util.PadWidth(h.Key, 8)),
				m.theme.ShortcutDesc.Render(h.Desc)))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.theme.ShortcutDesc.Render("Press F1 or esc to close."))
	return lipgloss.NewStyle().Width(m.width).Height(m.bodyHeight()).Padding(1, 2).Render(b.String())
}
