// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// localIDPrefix marks conversation IDs minted client-side before the server
// has assigned a session id. The prefix can never collide with server ids,
// which are opaque but never contain it.
const localIDPrefix = "local-"

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds one chat thread: its identity, title, ordered messages
// and the last-activity timestamp used to sort the sidebar.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"` // empty until the server generates one
	Messages     []Message `json:"messages"`
	LastActivity time.Time `json:"last_activity"`
}

// NewConversation creates a conversation with a temporary client-local ID.
// The ID is rewritten to the server session id when the first exchange
// settles.
func NewConversation() Conversation {
	return Conversation{
		ID:           localIDPrefix + uuid.NewString(),
		LastActivity: time.Now(),
	}
}

// IsLocal reports whether the conversation still carries a temporary
// client-generated id.
func (c Conversation) IsLocal() bool {
	return strings.HasPrefix(c.ID, localIDPrefix)
}

// DisplayTitle returns the title or a fallback for untitled threads.
func (c Conversation) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	for _, m := range c.Messages {
		if m.Role == RoleUser && m.Content != "" {
			return m.Preview(40)
		}
	}
	return "New chat"
}

// CloneMessages returns a fresh copy of the message slice. Messages are
// value types, so the copy shares nothing mutable with the original.
func (c Conversation) CloneMessages() []Message {
	out := make([]Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}

// MessageIndex returns the position of the message with the given
// client-local id, or -1.
func (c Conversation) MessageIndex(id string) int {
	for i, m := range c.Messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// PAGINATION CURSOR
// =============================================================================

// Page tracks the position within the server's paginated history.
type Page struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
}
