// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"

	"github.com/jeranaias/paichat-tui/internal/model"
)

// =============================================================================
// MESSAGE FEEDBACK
// =============================================================================
//
// Feedback flags are mutually exclusive and toggle: liking a liked message
// clears it, liking a disliked message flips it. Flags flip optimistically
// and revert if the server rejects the call.

// Like toggles the thumbs-up flag on an assistant message.
func (s *Store) Like(ctx context.Context, messageID string) error {
	return s.setFeedback(ctx, messageID, true)
}

// Dislike toggles the thumbs-down flag on an assistant message.
func (s *Store) Dislike(ctx context.Context, messageID string) error {
	return s.setFeedback(ctx, messageID, false)
}

func (s *Store) setFeedback(ctx context.Context, messageID string, positive bool) error {
	s.mu.Lock()
	conv := s.findLocked(s.activeID)
	if conv == nil {
		s.mu.Unlock()
		return ErrNoActiveConversation
	}
	idx := conv.MessageIndex(messageID)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNoSuchMessage
	}
	msg := &conv.Messages[idx]
	if msg.Role != model.RoleAssistant || msg.IsGenerating {
		s.mu.Unlock()
		return ErrNoSuchMessage
	}

	prevPositive, prevNegative := msg.PositiveFeedback, msg.NegativeFeedback
	if positive {
		msg.PositiveFeedback = !msg.PositiveFeedback
		msg.NegativeFeedback = false
	} else {
		msg.NegativeFeedback = !msg.NegativeFeedback
		msg.PositiveFeedback = false
	}
	newPositive, newNegative := msg.PositiveFeedback, msg.NegativeFeedback
	feedbackID := msg.FeedbackID()
	convID := conv.ID
	s.mu.Unlock()
	s.notify()

	if err := s.client.Feedback(ctx, feedbackID, newPositive, newNegative); err != nil {
		s.mu.Lock()
		if conv := s.findLocked(convID); conv != nil {
			if idx := conv.MessageIndex(messageID); idx >= 0 {
				conv.Messages[idx].PositiveFeedback = prevPositive
				conv.Messages[idx].NegativeFeedback = prevNegative
			}
		}
		s.mu.Unlock()
		s.notify()
		return err
	}

	if snapshot, ok := s.threadSnapshot(convID); ok {
		s.cacheConversation(ctx, snapshot)
	}
	return nil
}
