// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/paichat-tui/internal/export"
	"github.com/jeranaias/paichat-tui/internal/ui/styles"
)

// =============================================================================
// EXPORT COMMAND
// =============================================================================

// Export writes one conversation transcript to a file.
// Usage: paichat export <session-id> [--format md|html] [--out DIR]
func Export(app *App, args *ArgParser) error {
	if err := app.RequireSignIn(); err != nil {
		return err
	}
	sessionID := args.Positional(1)
	if sessionID == "" {
		return fmt.Errorf("usage: paichat export <session-id> [--format md|html] [--out DIR]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := app.Store.LoadPage(ctx); err != nil {
		return err
	}
	if err := app.Store.Select(ctx, sessionID); err != nil {
		return fmt.Errorf("opening session %s: %w", sessionID, err)
	}
	conv, ok := app.Store.ActiveThread()
	if !ok || len(conv.Messages) == 0 {
		return fmt.Errorf("conversation %s has no messages", sessionID)
	}

	opts := export.DefaultOptions()
	opts.OutputDir = args.FlagOrDefault("out", ".")

	var path string
	var err error
	switch format := args.FlagOrDefault("format", "md"); format {
	case "md", "markdown":
		path, err = export.ExportMarkdown(&conv, opts)
	case "html":
		path, err = export.ExportHTML(&conv, opts)
	default:
		return fmt.Errorf("unknown format %q (want md or html)", format)
	}
	if err != nil {
		return err
	}

	fmt.Println(styles.RenderSuccess("Exported to " + path))
	return nil
}
