// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds client-side conversation state and keeps it in sync
// with the backend. All mutations are optimistic: the UI-visible state
// changes first, the network call settles it, and failures roll back so no
// phantom entries survive.
package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/jeranaias/paichat-tui/internal/api"
	"github.com/jeranaias/paichat-tui/internal/model"
	"github.com/jeranaias/paichat-tui/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyMessage indicates a send with no content after normalization.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrBusy indicates the operation was dropped because an equivalent one
	// is already in flight (history load re-entrancy).
	ErrBusy = errors.New("operation already in progress")

	// ErrNoSuchMessage indicates the referenced message is not in the active
	// conversation.
	ErrNoSuchMessage = errors.New("no such message")

	// ErrNoActiveConversation indicates the operation needs a selected
	// conversation and none is selected.
	ErrNoActiveConversation = errors.New("no active conversation")
)

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// Store is the single owner of conversation state. Reads return snapshots;
// the internal slices are never shared with callers.
type Store struct {
	mu sync.Mutex

	client *api.Client
	cache  *storage.HistoryCache // nil when the offline cache is disabled

	conversations []model.Conversation // sorted by LastActivity, newest first
	activeID      string
	page          model.Page
	loadingHistory bool

	pageSize int
	onChange func()
}

// New creates a store backed by client. cache may be nil.
func New(client *api.Client, cache *storage.HistoryCache, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = 30
	}
	return &Store{
		client:   client,
		cache:    cache,
		pageSize: pageSize,
	}
}

// SetOnChange registers the callback fired after every state change. It is
// invoked outside the store lock; implementations may call back into the
// store's read methods.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// Conversations returns a snapshot of all threads, newest first.
func (s *Store) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Conversation, len(s.conversations))
	for i, conv := range s.conversations {
		out[i] = conv
		out[i].Messages = conv.CloneMessages()
	}
	return out
}

// ActiveThread returns a snapshot of the selected conversation.
func (s *Store) ActiveThread() (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(s.activeID)
	if conv == nil {
		return model.Conversation{}, false
	}
	out := *conv
	out.Messages = conv.CloneMessages()
	return out, true
}

// ActiveID returns the selected conversation id, or empty.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Pagination returns the history paging cursor.
func (s *Store) Pagination() model.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

// findLocked returns a pointer into the conversation slice. Caller holds mu;
// the pointer is invalid after unlock.
func (s *Store) findLocked(id string) *model.Conversation {
	if id == "" {
		return nil
	}
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return &s.conversations[i]
		}
	}
	return nil
}

// resolveLocked returns the conversation holding messageID, preferring the
// convID hint. A settle can outlive a thread rename: when overlapping sends
// share a still-local thread, whichever settles first adopts the server
// session id, so the others must find their placeholder under the new id.
func (s *Store) resolveLocked(convID, messageID string) *model.Conversation {
	if conv := s.findLocked(convID); conv != nil {
		return conv
	}
	for i := range s.conversations {
		if s.conversations[i].MessageIndex(messageID) >= 0 {
			return &s.conversations[i]
		}
	}
	return nil
}

// sortLocked restores newest-first order after an activity bump.
func (s *Store) sortLocked() {
	sort.SliceStable(s.conversations, func(i, j int) bool {
		return s.conversations[i].LastActivity.After(s.conversations[j].LastActivity)
	})
}

// notify fires the change callback. Never call while holding mu.
func (s *Store) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
