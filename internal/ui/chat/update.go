// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/paichat-tui/internal/model"
	"github.com/jeranaias/paichat-tui/internal/store"
)

// =============================================================================
// UPDATE LOOP
// =============================================================================

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StoreChangedMsg:
		m.refreshViewport(true)
		return m, nil

	case sendDoneMsg:
		m.busy = false
		m.refreshViewport(true)
		cmd := m.reportError(msg.err)
		return m, cmd

	case historyLoadedMsg:
		m.busy = false
		m.refreshViewport(false)
		cmd := m.reportError(msg.err)
		return m, cmd

	case selectDoneMsg:
		m.refreshViewport(true)
		cmd := m.reportError(msg.err)
		return m, cmd

	case actionDoneMsg:
		m.refreshViewport(false)
		cmd := m.reportError(msg.err)
		return m, cmd

	case exportDoneMsg:
		if msg.err != nil {
			cmd := m.reportError(msg.err)
			return m, cmd
		}
		m.status = "exported to " + msg.path
		return m, clearErrorAfter(5 * time.Second)

	case clearErrorMsg:
		m.errText = ""
		m.status = ""
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateComponents(msg)
}

// handleKey routes keyboard input by focus area.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.FocusNext):
		if m.focus == focusInput {
			m.focus = focusSidebar
			m.input.Blur()
		} else {
			m.focus = focusInput
			m.input.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.NewThread):
		m.store.NewThread()
		m.sidebarCursor = 0
		m.focus = focusInput
		m.input.Focus()
		m.refreshViewport(true)
		return m, nil
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleInputKey(msg)
}

// handleSidebarKey handles navigation within the conversation list.
func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	convs := m.store.Conversations()

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.sidebarCursor > 0 {
			m.sidebarCursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.sidebarCursor < len(convs)-1 {
			m.sidebarCursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if m.sidebarCursor < len(convs) {
			m.focus = focusInput
			m.input.Focus()
			return m, selectCmd(m.store, convs[m.sidebarCursor].ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if m.sidebarCursor < len(convs) {
			id := convs[m.sidebarCursor].ID
			if m.sidebarCursor > 0 {
				m.sidebarCursor--
			}
			return m, deleteCmd(m.store, id)
		}
		return m, nil

	case key.Matches(msg, m.keys.NextPage):
		m.busy = true
		return m, tea.Batch(m.spinner.Tick, loadHistoryCmd(m.store))
	}

	return m, nil
}

// handleInputKey handles typing and transcript actions.
func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.busy {
			return m, nil
		}
		if !m.limiter.Allow() {
			return m.throttled()
		}
		m.input.Reset()
		m.busy = true
		return m, tea.Batch(m.spinner.Tick, sendCmd(m.store, text, m.cfg.Server.Streaming))

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Like):
		if id, ok := m.lastMessageID(model.RoleAssistant); ok {
			return m, feedbackCmd(m.store, id, true)
		}
		return m, nil

	case key.Matches(msg, m.keys.Dislike):
		if id, ok := m.lastMessageID(model.RoleAssistant); ok {
			return m, feedbackCmd(m.store, id, false)
		}
		return m, nil

	case key.Matches(msg, m.keys.Resubmit):
		if m.busy {
			return m, nil
		}
		if id, ok := m.lastMessageID(model.RoleUser); ok {
			if !m.limiter.Allow() {
				return m.throttled()
			}
			m.busy = true
			return m, tea.Batch(m.spinner.Tick, resubmitCmd(m.store, id))
		}
		return m, nil

	case key.Matches(msg, m.keys.Export):
		if conv, ok := m.store.ActiveThread(); ok && len(conv.Messages) > 0 {
			return m, exportCmd(conv)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// updateComponents forwards non-key messages to the focused components.
func (m Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	if m.focus == focusInput {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// =============================================================================
// HELPERS
// =============================================================================

// lastMessageID returns the id of the newest settled message with the given
// role in the active thread.
func (m Model) lastMessageID(role model.Role) (string, bool) {
	conv, ok := m.store.ActiveThread()
	if !ok {
		return "", false
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		msg := conv.Messages[i]
		if msg.Role == role && !msg.IsGenerating {
			return msg.ID, true
		}
	}
	return "", false
}

// throttled surfaces the send pacing notice in the status bar.
func (m Model) throttled() (tea.Model, tea.Cmd) {
	m.errText = "sending too quickly; wait a moment"
	return m, clearErrorAfter(3 * time.Second)
}

// reportError surfaces an operation failure in the status bar. Expected
// rejections (busy, empty input) are shown but auto-clear faster.
func (m *Model) reportError(err error) tea.Cmd {
	if err == nil {
		return nil
	}
	m.errText = err.Error()
	d := 8 * time.Second
	if err == store.ErrBusy || err == store.ErrEmptyMessage {
		d = 3 * time.Second
	}
	return clearErrorAfter(d)
}
