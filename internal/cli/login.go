// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/jeranaias/paichat-tui/internal/ui/styles"
)

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

// Login prompts for credentials and stores the resulting token pair.
// Usage: paichat login [--phone NUMBER]
func Login(app *App, args *ArgParser) error {
	phone := args.Flag("phone")
	if phone == "" {
		fmt.Print(promptStyle.Render("Phone: "))
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading phone: %w", err)
		}
		phone = strings.TrimSpace(line)
	}
	if phone == "" {
		return fmt.Errorf("phone number is required")
	}

	password, err := readPassword(promptStyle.Render("Password: "))
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, err := app.Client.Login(ctx, phone, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := app.Guard.SetTokens(data.AccessToken, data.RefreshToken); err != nil {
		return err
	}

	name := data.User.Name
	if name == "" {
		name = phone
	}
	fmt.Println(styles.RenderSuccess("Signed in as " + name))
	return nil
}

// Logout invalidates the session server-side and clears local tokens.
func Logout(app *App) error {
	refreshToken := app.Guard.RefreshToken()

	// Always clear local state, even when the server call fails.
	defer app.Guard.Clear()

	if refreshToken == "" {
		fmt.Println(infoStyle.Render("Already signed out."))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.Client.Logout(ctx, refreshToken); err != nil {
		fmt.Println(warningStyle.Render("Server logout failed; local session cleared anyway."))
		return nil
	}
	fmt.Println(styles.RenderSuccess("Signed out."))
	return nil
}

// PasswordReset starts a password reset for the given phone number.
// Usage: paichat reset-password --phone NUMBER
func PasswordReset(app *App, args *ArgParser) error {
	phone := args.FlagOrDefault("phone", args.Positional(1))
	if phone == "" {
		return fmt.Errorf("usage: paichat reset-password --phone NUMBER")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.Client.RequestPasswordReset(ctx, phone); err != nil {
		return fmt.Errorf("password reset request failed: %w", err)
	}
	fmt.Println(styles.RenderInfo("Password reset requested; check your messages."))
	return nil
}

// readPassword reads a password without echoing. Falls back to plain reads
// when stdin is not a terminal (tests, pipes).
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	defer fmt.Println()

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
