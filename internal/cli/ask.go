// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command.
//
// Handles "paichat ask <question>": sends a single query in a fresh
// conversation, prints the answer to stdout and exits. Suited for piping.
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/paichat-tui/internal/model"
)

// Ask sends one question and prints the answer.
// Usage: paichat ask [--session ID] <question...>
func Ask(app *App, args *ArgParser) error {
	if err := app.RequireSignIn(); err != nil {
		return err
	}

	question := strings.Join(args.PositionalFrom(1), " ")
	if question == "" {
		return fmt.Errorf("usage: paichat ask <question>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if sessionID := args.Flag("session"); sessionID != "" {
		// Continue an existing conversation instead of a fresh one.
		if err := app.Store.LoadPage(ctx); err != nil {
			return err
		}
		if err := app.Store.Select(ctx, sessionID); err != nil {
			return fmt.Errorf("opening session %s: %w", sessionID, err)
		}
	}

	if err := app.Store.Send(ctx, question); err != nil {
		return err
	}

	conv, ok := app.Store.ActiveThread()
	if !ok {
		return fmt.Errorf("no answer received")
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		msg := conv.Messages[i]
		if msg.Role == model.RoleAssistant && !msg.IsGenerating {
			fmt.Println(msg.Content)
			return nil
		}
	}
	return fmt.Errorf("no answer received")
}
