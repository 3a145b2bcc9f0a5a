// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/paichat-tui/internal/export"
	"github.com/jeranaias/paichat-tui/internal/model"
	"github.com/jeranaias/paichat-tui/internal/store"
)

// =============================================================================
// MESSAGES
// =============================================================================

// StoreChangedMsg is sent by the store's change callback; the view re-reads
// its snapshot when it arrives.
type StoreChangedMsg struct{}

// sendDoneMsg reports the outcome of a send/resubmit.
type sendDoneMsg struct{ err error }

// historyLoadedMsg reports the outcome of a history page load.
type historyLoadedMsg struct{ err error }

// selectDoneMsg reports the outcome of opening a conversation.
type selectDoneMsg struct{ err error }

// actionDoneMsg reports the outcome of delete/feedback/export actions.
type actionDoneMsg struct {
	what string
	err  error
}

// exportDoneMsg reports the written transcript path.
type exportDoneMsg struct {
	path string
	err  error
}

// clearErrorMsg clears the transient status-bar error.
type clearErrorMsg struct{}

// =============================================================================
// COMMANDS
// =============================================================================

const requestTimeout = 5 * time.Minute

// sendCmd submits text through the store. Streaming mode delivers
// incremental updates through the store change callback.
func sendCmd(st *store.Store, text string, streaming bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		var err error
		if streaming {
			err = st.SendStreaming(ctx, text)
		} else {
			err = st.Send(ctx, text)
		}
		return sendDoneMsg{err: err}
	}
}

// loadHistoryCmd fetches the next history page.
func loadHistoryCmd(st *store.Store) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return historyLoadedMsg{err: st.LoadPage(ctx)}
	}
}

// selectCmd opens a conversation, loading its transcript if needed.
func selectCmd(st *store.Store, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return selectDoneMsg{err: st.Select(ctx, id)}
	}
}

// deleteCmd removes a conversation.
func deleteCmd(st *store.Store, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return actionDoneMsg{what: "delete", err: st.DeleteConversation(ctx, id)}
	}
}

// feedbackCmd toggles like/dislike on a message.
func feedbackCmd(st *store.Store, messageID string, positive bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var err error
		if positive {
			err = st.Like(ctx, messageID)
		} else {
			err = st.Dislike(ctx, messageID)
		}
		return actionDoneMsg{what: "feedback", err: err}
	}
}

// resubmitCmd regenerates the answer for a user message.
func resubmitCmd(st *store.Store, messageID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return sendDoneMsg{err: st.Resubmit(ctx, messageID)}
	}
}

// exportCmd writes the active transcript to a Markdown file.
func exportCmd(conv model.Conversation) tea.Cmd {
	return func() tea.Msg {
		path, err := export.ExportMarkdown(&conv, nil)
		return exportDoneMsg{path: path, err: err}
	}
}

// clearErrorAfter schedules the status-bar error to clear.
func clearErrorAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearErrorMsg{}
	})
}
