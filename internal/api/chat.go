// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// =============================================================================
// CHAT ENDPOINT TYPES
// =============================================================================

// SessionSummary is one conversation row in the paginated history listing.
type SessionSummary struct {
	SessionID      string `json:"session_id"`
	Title          string `json:"title"`
	DateTime       string `json:"date_time"`
	SharedToPublic bool   `json:"shared_to_public"`
}

// LastActivity parses the session timestamp. Zero time when unparseable.
func (s SessionSummary) LastActivity() time.Time {
	return parseServerTime(s.DateTime)
}

// Pagination describes the position inside the paginated history listing.
type Pagination struct {
	CurrentPage int    `json:"current_page"`
	TotalPages  int    `json:"total_pages"`
	NextPageURL string `json:"next_page_url"`
}

// HasNext reports whether another page can be fetched.
func (p Pagination) HasNext() bool {
	return p.NextPageURL != "" || p.CurrentPage < p.TotalPages
}

// HistoryData is the payload of the history listing.
type HistoryData struct {
	Sessions   []SessionSummary `json:"sessions"`
	Pagination Pagination       `json:"pagination"`
}

// ChatRecord is one stored message inside a conversation transcript.
type ChatRecord struct {
	ID               int64   `json:"id"`
	Type             string  `json:"type"` // "human" or "ai"
	Message          string  `json:"message"`
	DateTime         string  `json:"date_time"`
	Duration         float64 `json:"duration"`
	PositiveFeedback bool    `json:"positive_feedback"`
	NegativeFeedback bool    `json:"negative_feedback"`
}

// CreatedAt parses the record timestamp. Zero time when unparseable.
func (r ChatRecord) CreatedAt() time.Time {
	return parseServerTime(r.DateTime)
}

// SendData is the payload of a completed (non-streaming) send.
type SendData struct {
	SessionID string          `json:"session_id"`
	Response  string          `json:"response"`
	AIMessage json.RawMessage `json:"ai_message"`
	Duration  float64         `json:"duration"`
}

// Answer returns the assistant text, preferring the structured ai_message
// field when present.
func (d SendData) Answer() string {
	if len(d.AIMessage) > 0 {
		var msg struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(d.AIMessage, &msg); err == nil && msg.Message != "" {
			return msg.Message
		}
		// ai_message may also be a bare string.
		var s string
		if err := json.Unmarshal(d.AIMessage, &s); err == nil && s != "" {
			return s
		}
	}
	return d.Response
}

// =============================================================================
// CHAT ENDPOINTS
// =============================================================================

// History fetches one page of the conversation listing, newest first.
func (c *Client) History(ctx context.Context, page, limit int) (HistoryData, error) {
	path := fmt.Sprintf("%s/chat?page=%d&limit=%d", apiPrefix, page, limit)
	resp := c.Do(ctx, http.MethodGet, path, nil)
	if !resp.OK() {
		return HistoryData{}, resp.Err()
	}

	var data HistoryData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return HistoryData{}, fmt.Errorf("decoding history response: %w", err)
	}
	return data, nil
}

// Messages fetches the full transcript of one conversation.
func (c *Client) Messages(ctx context.Context, sessionID string) ([]ChatRecord, error) {
	resp := c.Do(ctx, http.MethodGet, apiPrefix+"/chat/"+url.PathEscape(sessionID), nil)
	if !resp.OK() {
		return nil, resp.Err()
	}

	var data struct {
		Messages []ChatRecord `json:"messages"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("decoding transcript response: %w", err)
	}
	return data.Messages, nil
}

// Send submits a query and blocks until the full answer is ready. An empty
// sessionID starts a new conversation; the server assigns the id.
func (c *Client) Send(ctx context.Context, query, sessionID string) (SendData, error) {
	body := map[string]string{"query": query}
	if sessionID != "" {
		body["session_id"] = sessionID
	}
	resp := c.Do(ctx, http.MethodPost, apiPrefix+"/chat", body)
	if !resp.OK() {
		return SendData{}, resp.Err()
	}

	var data SendData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return SendData{}, fmt.Errorf("decoding send response: %w", err)
	}
	return data, nil
}

// Resubmit re-runs an edited query against an existing conversation. The
// server discards everything after the edited message and answers fresh.
func (c *Client) Resubmit(ctx context.Context, query, sessionID string, messageID int64) (SendData, error) {
	body := map[string]any{
		"query":      query,
		"session_id": sessionID,
	}
	if messageID != 0 {
		body["message_id"] = messageID
	}
	resp := c.Do(ctx, http.MethodPost, apiPrefix+"/chat/resubmit", body)
	if !resp.OK() {
		return SendData{}, resp.Err()
	}

	var data SendData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return SendData{}, fmt.Errorf("decoding resubmit response: %w", err)
	}
	return data, nil
}

// Feedback records thumbs up/down for an assistant message.
func (c *Client) Feedback(ctx context.Context, messageID string, positive, negative bool) error {
	resp := c.Do(ctx, http.MethodPost, apiPrefix+"/chat/feedback", map[string]any{
		"message_id":        messageID,
		"positive_feedback": positive,
		"negative_feedback": negative,
	})
	return resp.Err()
}

// Title asks the backend to generate a short title for a conversation from
// its opening query.
func (c *Client) Title(ctx context.Context, query, sessionID string) (string, error) {
	resp := c.Do(ctx, http.MethodPost, apiPrefix+"/chat/title", map[string]string{
		"query":      query,
		"session_id": sessionID,
	})
	if !resp.OK() {
		return "", resp.Err()
	}

	var data struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", fmt.Errorf("decoding title response: %w", err)
	}
	return data.Title, nil
}

// DeleteSession removes a conversation and its messages server-side.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	resp := c.Do(ctx, http.MethodDelete, apiPrefix+"/chat/"+url.PathEscape(sessionID), nil)
	return resp.Err()
}

// Share toggles public sharing for a conversation and returns its state.
func (c *Client) Share(ctx context.Context, sessionID string, shared bool) (bool, error) {
	resp := c.Do(ctx, http.MethodPost, apiPrefix+"/chat/share/"+url.PathEscape(sessionID), map[string]bool{
		"shared_to_public": shared,
	})
	if !resp.OK() {
		return false, resp.Err()
	}

	var data struct {
		SharedToPublic bool `json:"shared_to_public"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return false, fmt.Errorf("decoding share response: %w", err)
	}
	return data.SharedToPublic, nil
}

// SharedMessages fetches the transcript of a publicly shared conversation.
// No authentication required.
func (c *Client) SharedMessages(ctx context.Context, sessionID string) ([]ChatRecord, error) {
	resp := c.DoPublic(ctx, http.MethodGet, apiPrefix+"/chat/share/"+url.PathEscape(sessionID), nil)
	if !resp.OK() {
		return nil, resp.Err()
	}

	var data struct {
		Messages []ChatRecord `json:"messages"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("decoding shared transcript: %w", err)
	}
	return data.Messages, nil
}

// =============================================================================
// TIMESTAMP PARSING
// =============================================================================

// serverTimeLayouts covers the formats the backend emits for date_time.
var serverTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseServerTime(s string) time.Time {
	for _, layout := range serverTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
