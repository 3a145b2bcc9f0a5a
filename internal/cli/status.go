// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jeranaias/paichat-tui/internal/config"
	"github.com/jeranaias/paichat-tui/internal/ui/styles"
)

// =============================================================================
// STATUS
// =============================================================================

// Status prints the configuration, sign-in state and backend reachability.
func Status(app *App) error {
	fmt.Println(welcomeStyle.Render("paichat status"))
	if path, err := config.Path(); err == nil {
		fmt.Printf("  config:   %s\n", path)
	}
	fmt.Printf("  backend:  %s\n", app.Config.Server.BaseURL)

	if app.Guard.SignedIn() {
		fmt.Println("  session:  " + styles.RenderSuccess("signed in"))
	} else {
		fmt.Println("  session:  " + styles.RenderWarning("signed out"))
	}

	if app.Cache != nil {
		if dbPath, err := app.Config.CacheDBPath(); err == nil {
			fmt.Printf("  cache:    %s\n", dbPath)
		}
	} else {
		fmt.Println("  cache:    disabled")
	}

	// Reachability probe; any HTTP answer means the host is up.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp := app.Client.DoPublic(ctx, http.MethodGet, "/api/v1/health", nil)
	if resp.Status == 500 && resp.Message == "network error or server is unreachable" {
		fmt.Println("  network:  " + styles.RenderError("unreachable"))
	} else {
		fmt.Println("  network:  " + styles.RenderSuccess("reachable"))
	}
	return nil
}

// =============================================================================
// SHARING
// =============================================================================

// Share toggles public sharing for a conversation.
// Usage: paichat share <session-id> [--off]
func Share(app *App, args *ArgParser) error {
	if err := app.RequireSignIn(); err != nil {
		return err
	}
	sessionID := args.Positional(1)
	if sessionID == "" {
		return fmt.Errorf("usage: paichat share <session-id> [--off]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	shared, err := app.Client.Share(ctx, sessionID, !args.BoolFlag("off"))
	if err != nil {
		return err
	}
	if shared {
		fmt.Println(styles.RenderSuccess("Conversation is now public."))
	} else {
		fmt.Println(styles.RenderInfo("Conversation is private again."))
	}
	return nil
}

// Shared prints a publicly shared transcript. No sign-in needed.
// Usage: paichat shared <session-id>
func Shared(app *App, args *ArgParser) error {
	sessionID := args.Positional(1)
	if sessionID == "" {
		return fmt.Errorf("usage: paichat shared <session-id>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := app.Client.SharedMessages(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(infoStyle.Render("This conversation is empty."))
		return nil
	}

	for _, rec := range records {
		label := "Assistant"
		if rec.Type == "human" {
			label = "You"
		}
		fmt.Printf("%s: %s\n\n", promptStyle.Render(label), rec.Message)
	}
	return nil
}
