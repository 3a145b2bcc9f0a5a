// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"log"
	"strconv"

	"github.com/jeranaias/paichat-tui/internal/api"
	"github.com/jeranaias/paichat-tui/internal/model"
	"github.com/jeranaias/paichat-tui/internal/storage"
)

// =============================================================================
// HISTORY PAGINATION
// =============================================================================

// LoadPage fetches the next page of the conversation listing and merges it
// into local state. Concurrent calls are rejected with ErrBusy so a slow
// page can never be fetched twice. When the first page is unreachable and a
// cache is attached, the cached listing is served instead.
func (s *Store) LoadPage(ctx context.Context) error {
	s.mu.Lock()
	if s.loadingHistory {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.page.CurrentPage > 0 && !s.page.HasNext {
		s.mu.Unlock()
		return nil
	}
	s.loadingHistory = true
	nextPage := s.page.CurrentPage + 1
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loadingHistory = false
		s.mu.Unlock()
	}()

	data, err := s.client.History(ctx, nextPage, s.pageSize)
	if err != nil {
		if nextPage == 1 && s.loadFromCache(ctx) {
			s.notify()
			return nil
		}
		return err
	}

	s.mu.Lock()
	for _, sess := range data.Sessions {
		if existing := s.findLocked(sess.SessionID); existing != nil {
			// Local state wins: an in-flight send may already have bumped
			// activity past what the listing reports.
			if existing.Title == "" {
				existing.Title = sess.Title
			}
			continue
		}
		s.conversations = append(s.conversations, model.Conversation{
			ID:           sess.SessionID,
			Title:        sess.Title,
			LastActivity: sess.LastActivity(),
		})
	}
	s.sortLocked()
	s.page = model.Page{
		CurrentPage: data.Pagination.CurrentPage,
		TotalPages:  data.Pagination.TotalPages,
		HasNext:     data.Pagination.HasNext(),
	}
	summaries := make([]model.Conversation, len(s.conversations))
	copy(summaries, s.conversations)
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SaveSummaries(ctx, summaries); err != nil {
			log.Printf("history cache write failed: %v", err)
		}
	}

	s.notify()
	return nil
}

// loadFromCache replaces the listing with the offline cache. Reports whether
// anything was loaded.
func (s *Store) loadFromCache(ctx context.Context) bool {
	if s.cache == nil {
		return false
	}
	cached, err := s.cache.Conversations(ctx)
	if err != nil || len(cached) == 0 {
		return false
	}

	s.mu.Lock()
	for _, conv := range cached {
		if s.findLocked(conv.ID) == nil {
			s.conversations = append(s.conversations, conv)
		}
	}
	s.sortLocked()
	s.page = model.Page{CurrentPage: 1, TotalPages: 1}
	s.mu.Unlock()

	log.Printf("serving %d conversations from offline cache", len(cached))
	return true
}

// =============================================================================
// SELECTION
// =============================================================================

// Select makes a conversation active and loads its transcript if not yet
// held. Reselecting the active conversation is a no-op.
func (s *Store) Select(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.activeID == id {
		s.mu.Unlock()
		return nil
	}
	conv := s.findLocked(id)
	if conv == nil {
		s.mu.Unlock()
		return ErrNoActiveConversation
	}
	s.activeID = id
	needsLoad := len(conv.Messages) == 0 && !conv.IsLocal()
	s.mu.Unlock()
	s.notify()

	if !needsLoad {
		return nil
	}

	records, err := s.client.Messages(ctx, id)
	if err != nil {
		msgs, cerr := s.cachedMessages(ctx, id)
		if cerr != nil {
			return err
		}
		s.replaceTranscript(id, msgs)
		s.notify()
		return nil
	}

	msgs := make([]model.Message, 0, len(records))
	for _, rec := range records {
		msgs = append(msgs, recordToMessage(rec))
	}
	s.replaceTranscript(id, msgs)
	s.notify()

	if snapshot, ok := s.threadSnapshot(id); ok {
		s.cacheConversation(ctx, snapshot)
	}
	return nil
}

// NewThread creates and selects an empty local conversation.
func (s *Store) NewThread() string {
	s.mu.Lock()
	fresh := model.NewConversation()
	s.conversations = append([]model.Conversation{fresh}, s.conversations...)
	s.activeID = fresh.ID
	s.mu.Unlock()
	s.notify()
	return fresh.ID
}

// =============================================================================
// DELETION
// =============================================================================

// DeleteConversation removes a thread optimistically and deletes it
// server-side. If the server call fails the thread is restored at its old
// position.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := -1
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrNoActiveConversation
	}

	removed := s.conversations[idx]
	local := removed.IsLocal()
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	if s.activeID == id {
		s.activeID = ""
	}
	s.mu.Unlock()
	s.notify()

	// Local threads have no server row; removal is final.
	if local {
		return nil
	}

	if err := s.client.DeleteSession(ctx, id); err != nil {
		s.mu.Lock()
		if idx > len(s.conversations) {
			idx = len(s.conversations)
		}
		s.conversations = append(s.conversations[:idx],
			append([]model.Conversation{removed}, s.conversations[idx:]...)...)
		s.mu.Unlock()
		s.notify()
		return err
	}

	if s.cache != nil {
		if cerr := s.cache.Delete(ctx, id); cerr != nil {
			log.Printf("history cache delete failed: %v", cerr)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// replaceTranscript swaps a conversation's messages wholesale. The server
// copy is authoritative once fetched.
func (s *Store) replaceTranscript(id string, msgs []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv := s.findLocked(id); conv != nil {
		conv.Messages = msgs
	}
}

// threadSnapshot returns a detached copy of one conversation.
func (s *Store) threadSnapshot(id string) (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.findLocked(id)
	if conv == nil {
		return model.Conversation{}, false
	}
	out := *conv
	out.Messages = conv.CloneMessages()
	return out, true
}

// cachedMessages reads a transcript from the offline cache.
func (s *Store) cachedMessages(ctx context.Context, id string) ([]model.Message, error) {
	if s.cache == nil {
		return nil, storage.ErrNotCached
	}
	return s.cache.Messages(ctx, id)
}

// recordToMessage converts a server transcript row to the local shape.
func recordToMessage(rec api.ChatRecord) model.Message {
	role := model.RoleAssistant
	if rec.Type == "human" {
		role = model.RoleUser
	}
	return model.Message{
		ID:               strconv.FormatInt(rec.ID, 10),
		Role:             role,
		Content:          rec.Message,
		CreatedAt:        rec.CreatedAt(),
		OriginalID:       strconv.FormatInt(rec.ID, 10),
		Duration:         rec.Duration,
		PositiveFeedback: rec.PositiveFeedback,
		NegativeFeedback: rec.NegativeFeedback,
	}
}
