// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// THEME
// =============================================================================

// Theme bundles the lipgloss styles used across the TUI. Build one with
// NewTheme at startup and pass it down; styles are immutable after that.
type Theme struct {
	// Sidebar
	Sidebar         lipgloss.Style
	SidebarTitle    lipgloss.Style
	SidebarItem     lipgloss.Style
	SidebarSelected lipgloss.Style
	SidebarMore     lipgloss.Style

	// Chat area
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageBody    lipgloss.Style
	MessageMeta    lipgloss.Style
	Generating     lipgloss.Style

	// Chrome
	StatusBar   lipgloss.Style
	StatusError lipgloss.Style
	InputBox    lipgloss.Style
	HelpText    lipgloss.Style
}

// NewTheme builds the style set for the current terminal.
func NewTheme() Theme {
	return Theme{
		Sidebar: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(Overlay).
			PaddingRight(1),
		SidebarTitle: lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true).
			PaddingLeft(1),
		SidebarItem: lipgloss.NewStyle().
			Foreground(TextSecondary).
			PaddingLeft(1),
		SidebarSelected: lipgloss.NewStyle().
			Foreground(TextPrimary).
			Background(SelectionBg).
			Bold(true).
			PaddingLeft(1),
		SidebarMore: lipgloss.NewStyle().
			Foreground(TextMuted).
			Italic(true).
			PaddingLeft(1),

		UserLabel: lipgloss.NewStyle().
			Foreground(UserAccent).
			Bold(true),
		AssistantLabel: lipgloss.NewStyle().
			Foreground(AssistantAccent).
			Bold(true),
		MessageBody: lipgloss.NewStyle().
			Foreground(TextPrimary),
		MessageMeta: lipgloss.NewStyle().
			Foreground(TextMuted),
		Generating: lipgloss.NewStyle().
			Foreground(Amber).
			Italic(true),

		StatusBar: lipgloss.NewStyle().
			Foreground(TextSecondary).
			Background(SurfaceDim).
			Padding(0, 1),
		StatusError: lipgloss.NewStyle().
			Foreground(Rose).
			Background(SurfaceDim).
			Bold(true).
			Padding(0, 1),
		InputBox: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(Overlay).
			Padding(0, 1),
		HelpText: lipgloss.NewStyle().
			Foreground(TextMuted),
	}
}

// =============================================================================
// TERMINAL CAPABILITIES
// =============================================================================

// HasDarkBackground reports whether the terminal background is dark. Drives
// glamour style selection alongside lipgloss's own adaptive colors.
func HasDarkBackground() bool {
	return termenv.HasDarkBackground()
}

// ColorProfile returns the detected terminal color capability.
func ColorProfile() termenv.Profile {
	return termenv.ColorProfile()
}
