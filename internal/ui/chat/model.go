// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/time/rate"

	"github.com/jeranaias/paichat-tui/internal/config"
	"github.com/jeranaias/paichat-tui/internal/store"
	"github.com/jeranaias/paichat-tui/internal/ui/components"
	"github.com/jeranaias/paichat-tui/internal/ui/styles"
)

// =============================================================================
// FOCUS AREAS
// =============================================================================

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the bubbletea model for the full chat screen: sidebar,
// transcript viewport, input box and status bar.
type Model struct {
	store *store.Store
	cfg   *config.Config

	theme     styles.Theme
	keys      KeyMap
	sidebar   components.Sidebar
	statusBar components.StatusBar

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	// limiter spaces sends so a stuck enter key cannot flood the backend.
	// The store itself never throttles; pacing is this layer's job.
	limiter *rate.Limiter

	focus         focusArea
	sidebarCursor int

	width  int
	height int
	ready  bool

	busy     bool
	showHelp bool
	errText  string
	status   string
}

// New creates the chat screen model.
func New(st *store.Store, cfg *config.Config) Model {
	theme := styles.NewTheme()

	input := textarea.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 8000
	input.SetHeight(3)
	input.ShowLineNumbers = false
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Amber)

	return Model{
		store:     st,
		cfg:       cfg,
		theme:     theme,
		keys:      DefaultKeyMap(),
		sidebar:   components.NewSidebar(theme),
		statusBar: components.NewStatusBar(theme),
		input:     input,
		spinner:   sp,
		limiter:   rate.NewLimiter(rate.Every(2*time.Second), 1),
		focus:     focusInput,
	}
}

// Init starts the spinner and kicks off the first history page load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		loadHistoryCmd(m.store),
	)
}

// =============================================================================
// LAYOUT
// =============================================================================

// resize recomputes component dimensions after a terminal size change.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	sidebarWidth := m.cfg.UI.SidebarWidth
	if sidebarWidth >= width/2 {
		sidebarWidth = width / 3
	}
	chatWidth := width - sidebarWidth

	// Status bar and input box take the bottom rows.
	inputHeight := 5
	contentHeight := height - inputHeight - 1

	m.sidebar.SetSize(sidebarWidth, contentHeight)
	m.statusBar.SetWidth(width)
	m.input.SetWidth(chatWidth - 4)

	if !m.ready {
		m.viewport = viewport.New(chatWidth-2, contentHeight)
		m.ready = true
	} else {
		m.viewport.Width = chatWidth - 2
		m.viewport.Height = contentHeight
	}

	if m.cfg.UI.Markdown {
		// Rebuild the renderer at the new wrap width.
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(chatWidth-6),
		)
		if err == nil {
			m.renderer = renderer
		}
	}

	m.refreshViewport(false)
}

// =============================================================================
// PROGRAM ENTRY
// =============================================================================

// Run starts the TUI and blocks until it exits. The store's change callback
// is wired to the program so background settles repaint the screen.
func Run(st *store.Store, cfg *config.Config) error {
	m := New(st, cfg)
	p := tea.NewProgram(m, tea.WithAltScreen())

	st.SetOnChange(func() {
		p.Send(StoreChangedMsg{})
	})
	defer st.SetOnChange(nil)

	_, err := p.Run()
	return err
}
