// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command dispatch for the paichat binary.
package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/jeranaias/paichat-tui/internal/config"
	chatui "github.com/jeranaias/paichat-tui/internal/ui/chat"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Run parses arguments, dispatches to the matching command and returns the
// process exit code.
func Run(rawArgs []string) int {
	args := NewArgParser(rawArgs)

	switch args.Subcommand() {
	case "help", "-h", "--help":
		printUsage()
		return 0
	case "version", "-v", "--version":
		fmt.Printf("paichat %s (%s, %s)\n", Version, GitCommit, BuildDate)
		return 0
	case "config":
		// Config management works before a backend is configured, so it
		// skips the full bootstrap.
		return exitCode(Config(args))
	}

	if args.BoolFlag("help") {
		printUsage()
		return 0
	}

	app, err := Bootstrap()
	if err != nil {
		fmt.Fprintln(os.Stderr, styleError(err))
		return 1
	}
	defer app.Close()

	switch args.Subcommand() {
	case "", "tui":
		return exitCode(runTUI(app))
	case "login":
		return exitCode(Login(app, args))
	case "logout":
		return exitCode(Logout(app))
	case "reset-password":
		return exitCode(PasswordReset(app, args))
	case "chat":
		return exitCode(Chat(app))
	case "ask":
		return exitCode(Ask(app, args))
	case "export":
		return exitCode(Export(app, args))
	case "share":
		return exitCode(Share(app, args))
	case "shared":
		return exitCode(Shared(app, args))
	case "status":
		return exitCode(Status(app))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", args.Subcommand())
		printUsage()
		return 1
	}
}

// runTUI starts the full-screen interface with live config reload.
func runTUI(app *App) error {
	if err := app.RequireSignIn(); err != nil {
		return err
	}

	// Reload display settings when the config file changes on disk.
	// Connection settings stay fixed for the lifetime of the program.
	if path, err := config.Path(); err == nil {
		watcher, err := config.NewWatcher(path, func(fresh *config.Config) {
			app.Config.Server.Streaming = fresh.Server.Streaming
			app.Config.UI = fresh.UI
		})
		if err == nil {
			if err := watcher.Watch(); err == nil {
				defer watcher.Close()
			} else {
				log.Printf("config watch unavailable: %v", err)
			}
		}
	}

	return chatui.Run(app.Store, app.Config)
}

func exitCode(err error) int {
	if err != nil {
		fmt.Fprintln(os.Stderr, styleError(err))
		return 1
	}
	return 0
}

func styleError(err error) string {
	return warningStyle.Render("Error: " + err.Error())
}

func printUsage() {
	fmt.Print(`paichat - terminal client for the PAI chat backend

Usage:
  paichat [command] [flags]

Commands:
  (none), tui       Full-screen chat interface
  chat              Plain-terminal interactive chat
  ask <question>    One-shot question, answer on stdout
  login             Sign in (--phone NUMBER)
  logout            Sign out and clear stored tokens
  reset-password    Request a password reset (--phone NUMBER)
  export <id>       Export a conversation (--format md|html, --out DIR)
  share <id>        Make a conversation public (--off to revoke)
  shared <id>       Print a publicly shared conversation
  status            Show configuration and backend reachability
  config            Show or edit configuration (show|init|set-url URL)
  version           Print version information
  help              Show this help

Environment:
  PAICHAT_BASE_URL, PAICHAT_TIMEOUT_SECS, PAICHAT_PAGE_SIZE,
  PAICHAT_STREAMING, PAICHAT_CACHE_PATH override the config file.
`)
}
