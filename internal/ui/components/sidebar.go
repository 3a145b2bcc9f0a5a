// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable view components for the paichat TUI.
package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/paichat-tui/internal/model"
	"github.com/jeranaias/paichat-tui/internal/ui/styles"
)

// =============================================================================
// CONVERSATION SIDEBAR
// =============================================================================

// Sidebar renders the conversation list.
type Sidebar struct {
	theme  styles.Theme
	width  int
	height int
}

// NewSidebar creates a sidebar with the given theme.
func NewSidebar(theme styles.Theme) Sidebar {
	return Sidebar{theme: theme}
}

// SetSize updates the render area.
func (s *Sidebar) SetSize(width, height int) {
	s.width = width
	s.height = height
}

// Width returns the configured width.
func (s Sidebar) Width() int {
	return s.width
}

// View renders the conversation list with the active thread highlighted.
// cursor is the focused row; hasMore indicates further history pages.
func (s Sidebar) View(convs []model.Conversation, activeID string, cursor int, hasMore bool) string {
	var sb strings.Builder

	sb.WriteString(s.theme.SidebarTitle.Render("Conversations"))
	sb.WriteString("\n\n")

	// Rows available after title, blank line, and the more-indicator.
	visible := s.height - 3
	if visible < 1 {
		visible = 1
	}
	start := 0
	if cursor >= visible {
		start = cursor - visible + 1
	}

	innerWidth := s.width - 3
	if innerWidth < 4 {
		innerWidth = 4
	}

	for i := start; i < len(convs) && i-start < visible; i++ {
		conv := convs[i]
		label := truncateCell(conv.DisplayTitle(), innerWidth)

		switch {
		case i == cursor:
			sb.WriteString(s.theme.SidebarSelected.Render("> " + label))
		case conv.ID == activeID:
			sb.WriteString(s.theme.SidebarItem.Bold(true).Render("* " + label))
		default:
			sb.WriteString(s.theme.SidebarItem.Render("  " + label))
		}
		sb.WriteString("\n")
	}

	if len(convs) == 0 {
		sb.WriteString(s.theme.SidebarMore.Render("(no conversations)"))
		sb.WriteString("\n")
	}
	if hasMore {
		sb.WriteString(s.theme.SidebarMore.Render("... more (ctrl+n)"))
		sb.WriteString("\n")
	}

	content := lipgloss.NewStyle().Width(s.width - 2).Height(s.height).Render(sb.String())
	return s.theme.Sidebar.Render(content)
}

// truncateCell trims a label to the cell width, accounting for wide runes.
func truncateCell(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
