// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth owns the access/refresh token pair lifecycle for the paichat
// client. All token access funnels through the Guard; nothing else in the
// client touches token state directly.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoRefreshToken indicates a refresh was attempted with no stored
	// refresh token. Fatal: the session cannot be recovered.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrRefreshFailed indicates the refresh call itself failed (rejected
	// token or transport failure). Fatal: tokens are cleared.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// =============================================================================
// TOKEN GUARD
// =============================================================================

// RefreshFunc performs the refresh network call and returns the new token
// pair. Implemented by the API client against POST /auth/refresh-token; it
// must fail closed on a 401 from the refresh endpoint rather than recurse.
type RefreshFunc func(ctx context.Context, refreshToken string) (access, refresh string, err error)

// TokenStore is an optional persistence capability for the token pair.
// Save always stores the complete pair; Clear removes it entirely. A load
// that finds nothing returns two empty strings and no error.
type TokenStore interface {
	Save(access, refresh string) error
	Load() (access, refresh string, err error)
	Clear() error
}

// Guard holds the token pair and guarantees at most one refresh network
// call is in flight at a time. Callers that hit an expired token while a
// refresh is running are queued and observe the outcome of that single
// refresh, not N redundant calls.
type Guard struct {
	mu      sync.Mutex
	access  string
	refresh string

	refreshing bool
	waiters    []chan error

	refreshFn RefreshFunc
	store     TokenStore
	onLogout  func()
}

// NewGuard creates a guard that refreshes through fn.
func NewGuard(fn RefreshFunc) *Guard {
	return &Guard{refreshFn: fn}
}

// SetLogoutHook registers the side effect run on irrecoverable auth failure
// (the terminal equivalent of the browser's redirect-to-login).
func (g *Guard) SetLogoutHook(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onLogout = fn
}

// SetStore attaches persistence and loads any previously saved pair.
// A corrupt or unreadable store is treated as empty.
func (g *Guard) SetStore(store TokenStore) {
	access, refresh, err := store.Load()
	if err != nil {
		log.Printf("token store load failed, starting signed out: %v", err)
		access, refresh = "", ""
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.store = store
	if access != "" && refresh != "" {
		g.access = access
		g.refresh = refresh
	}
}

// AccessToken returns the current access token, or empty if signed out.
func (g *Guard) AccessToken() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.access
}

// RefreshToken returns the current refresh token, or empty if signed out.
func (g *Guard) RefreshToken() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refresh
}

// SignedIn reports whether a complete token pair is held.
func (g *Guard) SignedIn() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.access != "" && g.refresh != ""
}

// SetTokens stores a new complete pair. Both values must be non-empty;
// a partial pair is never persisted.
func (g *Guard) SetTokens(access, refresh string) error {
	if access == "" || refresh == "" {
		return fmt.Errorf("incomplete token pair")
	}

	g.mu.Lock()
	g.access = access
	g.refresh = refresh
	store := g.store
	g.mu.Unlock()

	if store != nil {
		if err := store.Save(access, refresh); err != nil {
			log.Printf("token persistence failed: %v", err)
		}
	}
	return nil
}

// Clear wipes the pair from memory and the store.
func (g *Guard) Clear() {
	g.mu.Lock()
	g.access = ""
	g.refresh = ""
	store := g.store
	g.mu.Unlock()

	if store != nil {
		if err := store.Clear(); err != nil {
			log.Printf("token store clear failed: %v", err)
		}
	}
}

// =============================================================================
// SINGLE-FLIGHT REFRESH
// =============================================================================

// Refresh obtains a fresh token pair. If a refresh is already in flight the
// caller blocks until that refresh settles and shares its outcome. On any
// failure the tokens are cleared and the logout hook fires; all queued
// callers see the same error.
func (g *Guard) Refresh(ctx context.Context) error {
	g.mu.Lock()
	if g.refreshing {
		ch := make(chan error, 1)
		g.waiters = append(g.waiters, ch)
		g.mu.Unlock()

		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	g.refreshing = true
	refreshToken := g.refresh
	g.mu.Unlock()

	if refreshToken == "" {
		err := ErrNoRefreshToken
		g.failLogout()
		g.settle(err)
		return err
	}

	access, refresh, err := g.refreshFn(ctx, refreshToken)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrRefreshFailed, err)
		g.failLogout()
		g.settle(wrapped)
		return wrapped
	}
	if access == "" || refresh == "" {
		wrapped := fmt.Errorf("%w: server returned incomplete pair", ErrRefreshFailed)
		g.failLogout()
		g.settle(wrapped)
		return wrapped
	}

	if err := g.SetTokens(access, refresh); err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrRefreshFailed, err)
		g.failLogout()
		g.settle(wrapped)
		return wrapped
	}

	g.settle(nil)
	return nil
}

// settle resolves every queued waiter with the shared outcome and leaves
// the Refreshing state.
func (g *Guard) settle(err error) {
	g.mu.Lock()
	g.refreshing = false
	waiters := g.waiters
	g.waiters = nil
	g.mu.Unlock()

	for _, ch := range waiters {
		ch <- err
	}
}

// failLogout clears tokens and fires the logout hook.
func (g *Guard) failLogout() {
	g.mu.Lock()
	hook := g.onLogout
	g.mu.Unlock()

	g.Clear()
	if hook != nil {
		hook()
	}
}
