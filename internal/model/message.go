// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/paichat-tui/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// IDs are client-local; OriginalID carries the server-assigned message id
// once known (needed for resubmit and feedback calls). IsGenerating marks a
// placeholder whose content is still pending or streaming in. At most one of
// PositiveFeedback/NegativeFeedback is ever true.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	IsGenerating bool `json:"-"`

	// Server-side identity and metadata
	OriginalID string  `json:"original_id,omitempty"`
	Duration   float64 `json:"duration,omitempty"` // generation time in seconds

	// Feedback state
	PositiveFeedback bool `json:"positive_feedback,omitempty"`
	NegativeFeedback bool `json:"negative_feedback,omitempty"`
}

// NewUserMessage creates a user message with a generated client-local ID.
func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.NewString() + "-user",
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewAssistantPlaceholder creates an empty assistant message in the
// generating state. It stands in for the pending reply until the server
// settles the request.
func NewAssistantPlaceholder() Message {
	return Message{
		ID:           uuid.NewString() + "-assistant",
		Role:         RoleAssistant,
		CreatedAt:    time.Now(),
		IsGenerating: true,
	}
}

// FeedbackID returns the identifier to use for server feedback calls:
// the server-assigned id when known, the client-local id otherwise.
func (m Message) FeedbackID() string {
	if m.OriginalID != "" {
		return m.OriginalID
	}
	return m.ID
}

// Preview returns a truncated single-line preview of the message content.
func (m Message) Preview(maxRunes int) string {
	return util.TruncateRunes(util.FirstLine(m.Content), maxRunes)
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Content) == 0
}
