// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "testing"

// =============================================================================
// ARG PARSER TESTS
// =============================================================================

func TestArgParser_Subcommand(t *testing.T) {
	args := NewArgParser([]string{"export", "abc123", "--format", "html"})

	if got := args.Subcommand(); got != "export" {
		t.Errorf("Subcommand = %q, want %q", got, "export")
	}
	if got := args.Positional(1); got != "abc123" {
		t.Errorf("Positional(1) = %q, want %q", got, "abc123")
	}
}

func TestArgParser_Flags(t *testing.T) {
	args := NewArgParser([]string{"ask", "--session", "s-1", "--format=html", "--stdout"})

	if got := args.Flag("session"); got != "s-1" {
		t.Errorf("Flag(session) = %q, want %q", got, "s-1")
	}
	if got := args.Flag("format"); got != "html" {
		t.Errorf("Flag(format) = %q, want %q", got, "html")
	}
	if !args.BoolFlag("stdout") {
		t.Error("BoolFlag(stdout) should be true")
	}
	if args.BoolFlag("missing") {
		t.Error("BoolFlag(missing) should be false")
	}
}

func TestArgParser_BoolEquals(t *testing.T) {
	args := NewArgParser([]string{"config", "--verbose=true", "--color=false"})

	if !args.BoolFlag("verbose") {
		t.Error("BoolFlag(verbose) should be true")
	}
	if args.BoolFlag("color") {
		t.Error("BoolFlag(color) should be false")
	}
}

func TestArgParser_Defaults(t *testing.T) {
	args := NewArgParser([]string{"export"})

	if got := args.FlagOrDefault("format", "md"); got != "md" {
		t.Errorf("FlagOrDefault = %q, want %q", got, "md")
	}
	if got := args.FlagIntOrDefault("limit", 30); got != 30 {
		t.Errorf("FlagIntOrDefault = %d, want 30", got)
	}
}

func TestArgParser_PositionalFrom(t *testing.T) {
	args := NewArgParser([]string{"ask", "what", "is", "this"})

	rest := args.PositionalFrom(1)
	if len(rest) != 3 || rest[0] != "what" || rest[2] != "this" {
		t.Errorf("PositionalFrom(1) = %v", rest)
	}
	if got := args.PositionalFrom(10); got != nil {
		t.Errorf("PositionalFrom(10) = %v, want nil", got)
	}
}

func TestArgParser_Empty(t *testing.T) {
	args := NewArgParser(nil)

	if got := args.Subcommand(); got != "" {
		t.Errorf("Subcommand = %q, want empty", got)
	}
	if got := args.Positional(0); got != "" {
		t.Errorf("Positional(0) = %q, want empty", got)
	}
}
