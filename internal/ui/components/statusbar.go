// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/paichat-tui/internal/ui/styles"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// StatusBar renders the single-line footer: connection state on the left,
// transient status or error in the middle, key hints on the right.
type StatusBar struct {
	theme styles.Theme
	width int
}

// NewStatusBar creates a status bar with the given theme.
func NewStatusBar(theme styles.Theme) StatusBar {
	return StatusBar{theme: theme}
}

// SetWidth updates the render width.
func (b *StatusBar) SetWidth(width int) {
	b.width = width
}

// State describes what the status bar shows.
type State struct {
	SignedIn bool
	Busy     bool
	Page     string // e.g. "page 2/5"
	Error    string
	Hint     string
}

// View renders the bar.
func (b StatusBar) View(state State) string {
	left := "signed out"
	if state.SignedIn {
		left = "signed in"
	}
	if state.Busy {
		left += " | working..."
	}
	if state.Page != "" {
		left += " | " + state.Page
	}

	right := state.Hint
	if right == "" {
		right = "enter: send | tab: sidebar | ctrl+h: help | ctrl+c: quit"
	}

	if state.Error != "" {
		msg := fmt.Sprintf("%s %s", styles.StatusIndicators.Error, state.Error)
		return b.theme.StatusError.Width(b.width).Render(truncateCell(msg, b.width-2))
	}

	gap := b.width - runewidth.StringWidth(left) - runewidth.StringWidth(right) - 2
	if gap < 1 {
		return b.theme.StatusBar.Width(b.width).Render(truncateCell(left, b.width-2))
	}
	return b.theme.StatusBar.Width(b.width).Render(left + strings.Repeat(" ", gap) + right)
}
