// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// KEYSTORE TESTS
// =============================================================================

func TestFileKeystore_Roundtrip(t *testing.T) {
	ks, err := NewFileKeystore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKeystore: %v", err)
	}

	if err := ks.Save("access-token", "refresh-token"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	access, refresh, err := ks.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if access != "access-token" || refresh != "refresh-token" {
		t.Errorf("Load = (%q, %q), want original pair", access, refresh)
	}
}

func TestFileKeystore_MissingFileIsSignedOut(t *testing.T) {
	ks, err := NewFileKeystore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKeystore: %v", err)
	}

	access, refresh, err := ks.Load()
	if err != nil {
		t.Fatalf("Load on empty keystore: %v", err)
	}
	if access != "" || refresh != "" {
		t.Error("empty keystore should yield empty pair")
	}
}

func TestFileKeystore_EncryptedAtRest(t *testing.T) {
	dir := t.TempDir()
	ks, err := NewFileKeystore(dir)
	if err != nil {
		t.Fatalf("NewFileKeystore: %v", err)
	}
	if err := ks.Save("super-secret-access", "super-secret-refresh"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "tokens.enc"))
	if err != nil {
		t.Fatalf("reading token file: %v", err)
	}
	if !strings.HasPrefix(string(raw), "ENC:") {
		t.Error("token file should carry the ENC: prefix")
	}
	if strings.Contains(string(raw), "super-secret") {
		t.Error("plaintext tokens leaked to disk")
	}
}

func TestFileKeystore_TamperDetection(t *testing.T) {
	dir := t.TempDir()
	ks, err := NewFileKeystore(dir)
	if err != nil {
		t.Fatalf("NewFileKeystore: %v", err)
	}
	if err := ks.Save("a", "r"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(dir, "tokens.enc")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Flip a byte inside the base64 payload.
	raw[len(raw)-2] ^= 0x01
	if err := os.WriteFile(path, raw, 0600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := ks.Load(); err == nil {
		t.Error("Load should fail on a tampered token file")
	}
}

func TestFileKeystore_InvalidFormat(t *testing.T) {
	dir := t.TempDir()
	ks, err := NewFileKeystore(dir)
	if err != nil {
		t.Fatalf("NewFileKeystore: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tokens.enc"), []byte("not encrypted"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := ks.Load(); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("Load = %v, want ErrInvalidCiphertext", err)
	}
}

func TestFileKeystore_Clear(t *testing.T) {
	ks, err := NewFileKeystore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKeystore: %v", err)
	}
	if err := ks.Save("a", "r"); err != nil {
		t.Fatal(err)
	}
	if err := ks.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	// Clearing an already-empty keystore is fine.
	if err := ks.Clear(); err != nil {
		t.Fatalf("second Clear: %v", err)
	}

	access, refresh, err := ks.Load()
	if err != nil || access != "" || refresh != "" {
		t.Errorf("Load after Clear = (%q, %q, %v), want empty", access, refresh, err)
	}
}
