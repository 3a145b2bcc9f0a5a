// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the paichat command-line interface: argument
// dispatch, the login flow, the plain-terminal REPL and one-shot commands.
package cli

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/time/rate"

	"github.com/jeranaias/paichat-tui/internal/api"
	"github.com/jeranaias/paichat-tui/internal/auth"
	"github.com/jeranaias/paichat-tui/internal/config"
	"github.com/jeranaias/paichat-tui/internal/storage"
	"github.com/jeranaias/paichat-tui/internal/store"
	"github.com/jeranaias/paichat-tui/internal/ui/styles"
)

// =============================================================================
// OUTPUT STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)

	warningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)
)

// =============================================================================
// BOOTSTRAP
// =============================================================================

// App bundles the wired client stack shared by every command.
type App struct {
	Config *config.Config
	Client *api.Client
	Guard  *auth.Guard
	Store  *store.Store
	Cache  *storage.HistoryCache

	// sendLimiter spaces REPL sends; the store itself never throttles.
	sendLimiter *rate.Limiter
}

// Bootstrap loads configuration and wires the client, token guard, keystore
// and conversation store. The guard's refresh function is the client's own
// refresh call; the two reference each other, so the guard is attached after
// construction.
func Bootstrap() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w (run 'paichat config')", err)
	}

	client := api.NewClient(cfg.Server.BaseURL)
	guard := auth.NewGuard(client.RefreshTokens)
	client.SetGuard(guard)

	dir, err := config.Dir()
	if err != nil {
		return nil, fmt.Errorf("resolving config directory: %w", err)
	}
	keystore, err := auth.NewFileKeystore(dir)
	if err != nil {
		return nil, fmt.Errorf("opening token keystore: %w", err)
	}
	guard.SetStore(keystore)
	guard.SetLogoutHook(func() {
		fmt.Fprintln(os.Stderr, warningStyle.Render("Session expired. Run 'paichat login' to sign in again."))
	})

	app := &App{
		Config:      cfg,
		Client:      client,
		Guard:       guard,
		sendLimiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}

	if cfg.History.CacheEnabled {
		if dbPath, err := cfg.CacheDBPath(); err == nil {
			cache, err := storage.Open(dbPath)
			if err != nil {
				// Offline cache is a convenience; run without it.
				log.Printf("offline cache unavailable: %v", err)
			} else {
				app.Cache = cache
			}
		}
	}

	app.Store = store.New(client, app.Cache, cfg.History.PageSize)
	return app, nil
}

// Close releases app resources.
func (a *App) Close() {
	if a.Cache != nil {
		a.Cache.Close()
	}
}

// RequireSignIn returns an error when no token pair is held.
func (a *App) RequireSignIn() error {
	if !a.Guard.SignedIn() {
		return fmt.Errorf("not signed in; run 'paichat login' first")
	}
	return nil
}
