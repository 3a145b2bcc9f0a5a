// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/jeranaias/paichat-tui/internal/api"
	"github.com/jeranaias/paichat-tui/internal/model"
	"github.com/jeranaias/paichat-tui/internal/util"
)

// =============================================================================
// OPTIMISTIC SEND
// =============================================================================
//
// Every send follows the same three-phase shape:
//
//	compose — splice the user message and an assistant placeholder into the
//	          thread under the lock, before any network traffic
//	dispatch — the network call, no lock held
//	settle  — replace the placeholder on success, remove it on failure
//
// The placeholder is created and destroyed inside this file only, so a
// thread can never hold an orphaned generating message.

// Send submits text to the active conversation, creating a new thread when
// none is selected. Blocks until the full answer settles.
func (s *Store) Send(ctx context.Context, text string) error {
	text = util.CleanMessageText(text)
	if text == "" {
		return ErrEmptyMessage
	}

	convID, sessionID, placeholderID := s.compose(text)
	s.notify()

	data, err := s.client.Send(ctx, text, sessionID)
	if err != nil {
		s.settleFailure(convID, placeholderID)
		s.notify()
		return err
	}

	s.settleSuccess(ctx, convID, placeholderID, text, data)
	s.notify()
	return nil
}

// SendStreaming is Send with incremental delivery: answer fragments are
// spliced into the placeholder as they arrive, and the change callback fires
// per fragment.
func (s *Store) SendStreaming(ctx context.Context, text string) error {
	text = util.CleanMessageText(text)
	if text == "" {
		return ErrEmptyMessage
	}

	convID, sessionID, placeholderID := s.compose(text)
	s.notify()

	stream, err := s.client.SendStream(ctx, text, sessionID)
	if err != nil {
		s.settleFailure(convID, placeholderID)
		s.notify()
		return err
	}
	defer stream.Close()

	var accumulated string
	var final api.SendData
	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// The connection died mid-answer. Keep what arrived; an empty
			// placeholder is removed like any failed send.
			if accumulated == "" {
				s.settleFailure(convID, placeholderID)
				s.notify()
				return err
			}
			break
		}

		if ev.Done {
			if len(ev.Final) > 0 {
				if jerr := json.Unmarshal(ev.Final, &final); jerr != nil {
					log.Printf("ignoring malformed stream final payload: %v", jerr)
				}
			}
			break
		}

		accumulated += ev.Text
		s.appendDelta(convID, placeholderID, ev.Text)
		s.notify()
	}

	if final.Response == "" {
		final.Response = accumulated
	}
	if final.Response == "" && accumulated == "" {
		s.settleFailure(convID, placeholderID)
		s.notify()
		return errors.New("stream ended without an answer")
	}

	s.settleSuccess(ctx, convID, placeholderID, text, final)
	s.notify()
	return nil
}

// Edit rewrites an earlier user message and re-runs it. The edited message
// and everything after it are discarded; the new exchange replaces them.
func (s *Store) Edit(ctx context.Context, messageID, newText string) error {
	return s.resubmitAt(ctx, messageID, newText)
}

// Resubmit re-runs an existing user message unchanged, discarding its old
// answer and everything after it.
func (s *Store) Resubmit(ctx context.Context, messageID string) error {
	return s.resubmitAt(ctx, messageID, "")
}

// resubmitAt truncates the active thread at the target user message and
// sends query (or the original content when query is empty) against the
// resubmit endpoint.
func (s *Store) resubmitAt(ctx context.Context, messageID, query string) error {
	s.mu.Lock()
	conv := s.findLocked(s.activeID)
	if conv == nil {
		s.mu.Unlock()
		return ErrNoActiveConversation
	}
	idx := conv.MessageIndex(messageID)
	if idx < 0 || conv.Messages[idx].Role != model.RoleUser {
		s.mu.Unlock()
		return ErrNoSuchMessage
	}

	target := conv.Messages[idx]
	if query == "" {
		query = target.Content
	}
	query = util.CleanMessageText(query)
	if query == "" {
		s.mu.Unlock()
		return ErrEmptyMessage
	}

	// Truncate the target and its tail, then splice the fresh exchange.
	conv.Messages = conv.Messages[:idx]
	userMsg := model.NewUserMessage(query)
	placeholder := model.NewAssistantPlaceholder()
	conv.Messages = append(conv.Messages, userMsg, placeholder)
	conv.LastActivity = time.Now()
	s.sortLocked()

	convID := conv.ID
	sessionID := conv.ID
	if conv.IsLocal() {
		sessionID = ""
	}
	placeholderID := placeholder.ID
	serverMsgID := parseServerID(target.OriginalID)
	s.mu.Unlock()
	s.notify()

	data, err := s.client.Resubmit(ctx, query, sessionID, serverMsgID)
	if err != nil {
		s.settleFailure(convID, placeholderID)
		s.notify()
		return err
	}

	s.settleSuccess(ctx, convID, placeholderID, query, data)
	s.notify()
	return nil
}

// =============================================================================
// COMPOSE / SETTLE
// =============================================================================

// compose splices the user message and placeholder into the active thread,
// creating a local thread when nothing is selected. Returns the conversation
// id, the session id for the wire (empty for local threads) and the
// placeholder id.
func (s *Store) compose(text string) (convID, sessionID, placeholderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(s.activeID)
	if conv == nil {
		fresh := model.NewConversation()
		s.conversations = append([]model.Conversation{fresh}, s.conversations...)
		s.activeID = fresh.ID
		conv = &s.conversations[0]
	}

	userMsg := model.NewUserMessage(text)
	placeholder := model.NewAssistantPlaceholder()
	conv.Messages = append(conv.Messages, userMsg, placeholder)
	conv.LastActivity = time.Now()
	s.sortLocked()

	sessionID = conv.ID
	if conv.IsLocal() {
		sessionID = ""
	}
	return conv.ID, sessionID, placeholder.ID
}

// appendDelta appends a streamed fragment to the placeholder content.
func (s *Store) appendDelta(convID, placeholderID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.resolveLocked(convID, placeholderID)
	if conv == nil {
		return
	}
	if idx := conv.MessageIndex(placeholderID); idx >= 0 {
		conv.Messages[idx].Content += text
	}
}

// settleSuccess replaces the placeholder with the final answer, adopts the
// server session id for new threads and write-through caches the result.
func (s *Store) settleSuccess(ctx context.Context, convID, placeholderID, query string, data api.SendData) {
	var needsTitle bool
	var snapshot model.Conversation

	s.mu.Lock()
	conv := s.resolveLocked(convID, placeholderID)
	if conv == nil {
		s.mu.Unlock()
		return
	}

	if idx := conv.MessageIndex(placeholderID); idx >= 0 {
		msg := &conv.Messages[idx]
		msg.Content = data.Answer()
		msg.IsGenerating = false
		msg.Duration = data.Duration
		msg.OriginalID = aiMessageID(data.AIMessage)
	}

	if conv.IsLocal() && data.SessionID != "" {
		oldID := conv.ID
		conv.ID = data.SessionID
		if s.activeID == oldID {
			s.activeID = data.SessionID
		}
		needsTitle = conv.Title == ""
	}
	conv.LastActivity = time.Now()
	s.sortLocked()

	snapshot = *conv
	snapshot.Messages = conv.CloneMessages()
	s.mu.Unlock()

	s.cacheConversation(ctx, snapshot)

	if needsTitle {
		go s.fetchTitle(query, snapshot.ID)
	}
}

// settleFailure removes the placeholder, keeping the user message so the
// input can be retried. The thread never shows a stuck generating entry.
func (s *Store) settleFailure(convID, placeholderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.resolveLocked(convID, placeholderID)
	if conv == nil {
		return
	}
	if idx := conv.MessageIndex(placeholderID); idx >= 0 {
		conv.Messages = append(conv.Messages[:idx], conv.Messages[idx+1:]...)
	}
}

// fetchTitle asks the backend to title a freshly created thread. Failures
// only cost the generated title; the fallback preview stands in.
func (s *Store) fetchTitle(query, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	title, err := s.client.Title(ctx, query, sessionID)
	if err != nil || title == "" {
		return
	}

	s.mu.Lock()
	if conv := s.findLocked(sessionID); conv != nil {
		conv.Title = title
	}
	s.mu.Unlock()
	s.notify()
}

// cacheConversation mirrors a settled thread into the offline cache.
func (s *Store) cacheConversation(ctx context.Context, conv model.Conversation) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SaveConversation(ctx, conv); err != nil {
		log.Printf("history cache write failed: %v", err)
	}
}

// aiMessageID extracts the server message id from the ai_message payload.
func aiMessageID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var msg struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.ID == 0 {
		return ""
	}
	return strconv.FormatInt(msg.ID, 10)
}

// parseServerID converts a stored server message id back to its numeric
// form for the wire. Zero when the id is unknown or client-local.
func parseServerID(id string) int64 {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
