// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/jeranaias/paichat-tui/internal/config"
	"github.com/jeranaias/paichat-tui/internal/ui/styles"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

// Config shows or initializes the configuration file.
// Usage:
//
//	paichat config              Show current configuration
//	paichat config init         Write a default config file
//	paichat config set-url URL  Set the backend base URL
func Config(args *ArgParser) error {
	switch args.Positional(1) {
	case "", "show":
		return showConfig()
	case "init":
		return initConfig()
	case "set-url":
		return setBaseURL(args.Positional(2))
	default:
		return fmt.Errorf("usage: paichat config [show|init|set-url URL]")
	}
}

func showConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Println(welcomeStyle.Render("paichat configuration"))
	if path, err := config.Path(); err == nil {
		fmt.Printf("  file:          %s\n", path)
	}
	fmt.Printf("  base_url:      %s\n", valueOrUnset(cfg.Server.BaseURL))
	fmt.Printf("  timeout_secs:  %d\n", cfg.Server.RequestTimeoutSecs)
	fmt.Printf("  streaming:     %t\n", cfg.Server.Streaming)
	fmt.Printf("  page_size:     %d\n", cfg.History.PageSize)
	fmt.Printf("  cache_enabled: %t\n", cfg.History.CacheEnabled)
	fmt.Printf("  markdown:      %t\n", cfg.UI.Markdown)
	fmt.Printf("  sidebar_width: %d\n", cfg.UI.SidebarWidth)

	if err := cfg.Validate(); err != nil {
		fmt.Println()
		fmt.Println(styles.RenderWarning(err.Error()))
		fmt.Println(infoStyle.Render("Set the backend with: paichat config set-url https://chat.example.com"))
	}
	return nil
}

func initConfig() error {
	cfg := config.Default()
	if err := cfg.Save(); err != nil {
		return err
	}
	path, _ := config.Path()
	fmt.Println(styles.RenderSuccess("Wrote default configuration to " + path))
	fmt.Println(infoStyle.Render("Edit it or run: paichat config set-url https://chat.example.com"))
	return nil
}

func setBaseURL(url string) error {
	if url == "" {
		return fmt.Errorf("usage: paichat config set-url URL")
	}

	// Start from the existing file when present, defaults otherwise.
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}
	cfg.Server.BaseURL = url
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Println(styles.RenderSuccess("Backend set to " + url))
	return nil
}

func valueOrUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}
