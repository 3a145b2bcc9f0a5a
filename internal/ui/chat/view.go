// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/paichat-tui/internal/model"
	"github.com/jeranaias/paichat-tui/internal/ui/components"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	convs := m.store.Conversations()
	page := m.store.Pagination()

	sidebar := m.sidebar.View(convs, m.store.ActiveID(), m.sidebarCursor, page.HasNext)

	var chatArea string
	if m.showHelp {
		chatArea = m.renderHelp()
	} else {
		chatArea = m.viewport.View()
	}

	inputView := m.theme.InputBox.Render(m.input.View())
	right := lipgloss.JoinVertical(lipgloss.Left, chatArea, inputView)
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, right)

	status := components.State{
		SignedIn: true,
		Busy:     m.busy,
		Error:    m.errText,
	}
	if m.busy {
		status.Hint = m.spinner.View() + " waiting for answer..."
	}
	if m.status != "" && m.errText == "" {
		status.Hint = m.status
	}
	if page.TotalPages > 1 {
		status.Page = fmt.Sprintf("page %d/%d", page.CurrentPage, page.TotalPages)
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, m.statusBar.View(status))
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// refreshViewport re-renders the active transcript into the viewport.
// gotoBottom keeps the newest message in view after sends and streams.
func (m *Model) refreshViewport(gotoBottom bool) {
	if !m.ready {
		return
	}

	conv, ok := m.store.ActiveThread()
	if !ok {
		m.viewport.SetContent(m.theme.HelpText.Render(
			"\n  Start typing to begin a new conversation.\n" +
				"  Press Tab to browse history, Ctrl+H for help."))
		return
	}

	wasAtBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript(conv))
	if gotoBottom || wasAtBottom {
		m.viewport.GotoBottom()
	}
}

// renderTranscript renders all messages of one conversation.
func (m Model) renderTranscript(conv model.Conversation) string {
	var sb strings.Builder

	for _, msg := range conv.Messages {
		sb.WriteString(m.renderMessage(msg))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderMessage renders one message with its role label and metadata line.
func (m Model) renderMessage(msg model.Message) string {
	var sb strings.Builder

	label := m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	if msg.Role == model.RoleUser {
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
	}
	sb.WriteString(label)

	if !msg.CreatedAt.IsZero() {
		sb.WriteString(m.theme.MessageMeta.Render("  " + msg.CreatedAt.Format("15:04")))
	}
	sb.WriteString("\n")

	switch {
	case msg.IsGenerating && msg.IsEmpty():
		sb.WriteString(m.theme.Generating.Render(m.spinner.View() + " thinking..."))
	case msg.Role == model.RoleAssistant:
		sb.WriteString(m.renderBody(msg.Content))
		if meta := m.renderMessageMeta(msg); meta != "" {
			sb.WriteString("\n")
			sb.WriteString(meta)
		}
	default:
		sb.WriteString(m.theme.MessageBody.Render(msg.Content))
	}
	sb.WriteString("\n")

	return sb.String()
}

// renderBody renders assistant text, through glamour when markdown is on.
func (m Model) renderBody(content string) string {
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(content); err == nil {
			return strings.TrimRight(rendered, "\n")
		}
	}
	return m.theme.MessageBody.Render(content)
}

// renderMessageMeta renders the duration/feedback line under an answer.
func (m Model) renderMessageMeta(msg model.Message) string {
	var parts []string

	if msg.Duration > 0 {
		parts = append(parts, fmt.Sprintf("%.1fs", msg.Duration))
	}
	if msg.PositiveFeedback {
		parts = append(parts, "+1")
	}
	if msg.NegativeFeedback {
		parts = append(parts, "-1")
	}
	if len(parts) == 0 {
		return ""
	}
	return m.theme.MessageMeta.Render(strings.Join(parts, " | "))
}

// =============================================================================
// HELP OVERLAY
// =============================================================================

// renderHelp renders the key binding reference in place of the transcript.
func (m Model) renderHelp() string {
	var sb strings.Builder
	sb.WriteString(m.theme.SidebarTitle.Render("Keyboard Shortcuts"))
	sb.WriteString("\n\n")

	for _, group := range m.keys.FullHelp() {
		for _, binding := range group {
			help := binding.Help()
			sb.WriteString(fmt.Sprintf("  %-12s %s\n",
				help.Key, m.theme.HelpText.Render(help.Desc)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(m.theme.HelpText.Render("  Press Ctrl+H to close."))
	return lipgloss.NewStyle().
		Width(m.viewport.Width).
		Height(m.viewport.Height).
		Render(sb.String())
}
