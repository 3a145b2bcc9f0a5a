// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
)

// =============================================================================
// SERVER-SENT EVENT STREAM
// =============================================================================
//
// The backend streams answers as SSE blocks separated by a blank line:
//
//	event: chunk
//	data: {"text":"partial"}
//
//	event: done
//	data: {"session_id":"...","response":"...","duration":1.2}
//
// Reads arrive at arbitrary byte boundaries; the decoder buffers until a
// complete block is available, so a block split across reads yields exactly
// one event.

// StreamEvent is one decoded event from an answer stream.
type StreamEvent struct {
	// Text is the incremental answer fragment (chunk events).
	Text string
	// Done marks the final event; Final holds its full payload.
	Done  bool
	Final json.RawMessage
}

// ErrStreamUnauthorized indicates the stream request was rejected even after
// a token refresh.
var ErrStreamUnauthorized = errors.New("stream request unauthorized")

// EventStream decodes SSE events from one streaming response. Not safe for
// concurrent use; drive it from a single reader goroutine.
type EventStream struct {
	body    io.ReadCloser
	pending []byte
	readBuf []byte
	done    bool
}

// NewEventStream wraps a streaming response body. The stream owns the body
// and closes it via Close.
func NewEventStream(body io.ReadCloser) *EventStream {
	return &EventStream{
		body:    body,
		readBuf: make([]byte, 4096),
	}
}

// Next blocks until the next event is decoded. After a done event, or once
// the server closes the connection, it returns io.EOF.
func (s *EventStream) Next() (StreamEvent, error) {
	if s.done {
		return StreamEvent{}, io.EOF
	}

	for {
		// Drain complete blocks already buffered before reading more.
		for {
			idx := bytes.Index(s.pending, []byte("\n\n"))
			if idx < 0 {
				break
			}
			block := s.pending[:idx]
			s.pending = s.pending[idx+2:]

			ev, ok := parseEventBlock(block)
			if !ok {
				continue
			}
			if ev.Done {
				s.done = true
			}
			return ev, nil
		}

		n, err := s.body.Read(s.readBuf)
		if n > 0 {
			s.pending = append(s.pending, s.readBuf[:n]...)
			continue
		}
		if err != nil {
			// Connection closed without a done event: the answer so far is
			// all there is. Surface EOF either way.
			s.done = true
			if errors.Is(err, io.EOF) {
				return StreamEvent{}, io.EOF
			}
			return StreamEvent{}, fmt.Errorf("reading stream: %w", err)
		}
	}
}

// Close releases the underlying connection.
func (s *EventStream) Close() error {
	s.done = true
	return s.body.Close()
}

// parseEventBlock decodes one SSE block. Malformed blocks are logged and
// skipped rather than killing the stream.
func parseEventBlock(block []byte) (StreamEvent, bool) {
	var eventName, data string
	for _, line := range strings.Split(string(block), "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" || strings.HasPrefix(line, ":"):
			// Blank padding or SSE comment (keepalive).
		}
	}

	switch eventName {
	case "chunk":
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			log.Printf("skipping malformed chunk event: %v", err)
			return StreamEvent{}, false
		}
		return StreamEvent{Text: payload.Text}, true
	case "done":
		return StreamEvent{Done: true, Final: json.RawMessage(data)}, true
	case "":
		return StreamEvent{}, false
	default:
		// Unknown event types are ignored for forward compatibility.
		return StreamEvent{}, false
	}
}

// =============================================================================
// STREAMING SEND
// =============================================================================

// SendStream submits a query and returns a live event stream of the answer.
// A 401/403 on the initial response triggers one token refresh and retry,
// matching the non-streaming path. The caller must Close the stream.
func (c *Client) SendStream(ctx context.Context, query, sessionID string) (*EventStream, error) {
	resp, err := c.openStream(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		drain(resp)
		if err := c.guard.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStreamUnauthorized, err)
		}
		resp, err = c.openStream(ctx, query, sessionID)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			drain(resp)
			return nil, ErrStreamUnauthorized
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		out := decodeResponse(resp)
		return nil, out.Err()
	}

	return NewEventStream(resp.Body), nil
}

func (c *Client) openStream(ctx context.Context, query, sessionID string) (*http.Response, error) {
	body := map[string]string{"query": query, "stream": "true"}
	if sessionID != "" {
		body["session_id"] = sessionID
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+"/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", "paichat/"+Version)
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := sharedStreamingClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error or server is unreachable: %w", err)
	}
	return resp, nil
}
