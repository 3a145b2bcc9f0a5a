// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the HTTP client for the PAI chat backend.
//
// Every authenticated request flows through Client.Do, which attaches the
// bearer token, recovers from token expiry with a single refresh-and-retry,
// and normalizes all outcomes (including transport failures) into a uniform
// Response value. Callers never handle transport exceptions.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/paichat-tui/internal/auth"
)

// Configuration constants for the backend API.
const (
	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize caps response bodies.
	// SECURITY: prevents memory exhaustion from a misbehaving server.
	MaxResponseSize = 10 * 1024 * 1024

	apiPrefix   = "/api/v1"
	refreshPath = apiPrefix + "/auth/refresh-token"
)

var (
	// Shared HTTP client with connection pooling for all request/response calls.
	// SECURITY: TLS 1.2 minimum.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient is used for SSE requests (no timeout, context-controlled).
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// =============================================================================
// UNIFORM RESPONSE
// =============================================================================

// Response is the uniform outcome of one logical API call. Transport
// failures surface as Status 500 with a message, never as a Go error, so
// callers branch on Status alone.
type Response struct {
	Status  int             `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK reports whether the call succeeded.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Err converts a failed Response into an error for callers that propagate
// failures as values up the intent chain. Returns nil for successes.
func (r Response) Err() error {
	if r.OK() {
		return nil
	}
	if r.Message == "" {
		return fmt.Errorf("request failed with status %d", r.Status)
	}
	return fmt.Errorf("%s (status %d)", r.Message, r.Status)
}

// envelope is the backend's JSON wrapper around every response body.
type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client issues requests against one PAI backend.
type Client struct {
	baseURL string
	guard   *auth.Guard
}

// NewClient creates a client for the backend at baseURL. The token guard is
// attached separately because the guard's refresh function is implemented
// by this client (see RefreshTokens).
func NewClient(baseURL string) *Client {
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// SetGuard attaches the token guard used for bearer tokens and recovery.
func (c *Client) SetGuard(g *auth.Guard) {
	c.guard = g
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// RESILIENT REQUEST PATH
// =============================================================================

// Do performs one logical authenticated request. On a 401/403 (for any path
// other than the refresh endpoint itself) it refreshes the token pair and
// retries exactly once; a second auth failure is surfaced, not retried, so
// expiry can never loop.
func (c *Client) Do(ctx context.Context, method, path string, body any) Response {
	bodyBytes, err := marshalBody(body)
	if err != nil {
		return Response{Status: 500, Message: "failed to encode request: " + err.Error()}
	}

	resp, err := c.send(ctx, method, path, bodyBytes, c.bearer())
	if err != nil {
		return Response{Status: 500, Message: "network error or server is unreachable"}
	}

	// Without a guard there is no refresh to attempt; the 401 is surfaced
	// as-is, same as bearer() sending the request unauthenticated.
	if (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) &&
		path != refreshPath && c.guard != nil {
		drain(resp)

		if err := c.guard.Refresh(ctx); err != nil {
			return Response{Status: http.StatusUnauthorized, Message: "unauthorized: token refresh failed"}
		}

		resp, err = c.send(ctx, method, path, bodyBytes, c.bearer())
		if err != nil {
			return Response{Status: 500, Message: "network error or server is unreachable"}
		}
	}

	return decodeResponse(resp)
}

// DoPublic performs one unauthenticated request (shared transcripts). No
// bearer token, no refresh.
func (c *Client) DoPublic(ctx context.Context, method, path string, body any) Response {
	bodyBytes, err := marshalBody(body)
	if err != nil {
		return Response{Status: 500, Message: "failed to encode request: " + err.Error()}
	}
	resp, err := c.send(ctx, method, path, bodyBytes, "")
	if err != nil {
		return Response{Status: 500, Message: "network error or server is unreachable"}
	}
	return decodeResponse(resp)
}

// send issues a single HTTP request. The caller owns the response body.
func (c *Client) send(ctx context.Context, method, path string, body []byte, bearer string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "paichat/"+Version)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	return sharedHTTPClient.Do(req)
}

// bearer returns the current access token, or empty when signed out.
func (c *Client) bearer() string {
	if c.guard == nil {
		return ""
	}
	return c.guard.AccessToken()
}

// =============================================================================
// RESPONSE DECODING
// =============================================================================

// decodeResponse reads and closes the body, unwrapping the backend's
// {message, data} envelope into the uniform Response shape.
func decodeResponse(resp *http.Response) Response {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return Response{Status: 500, Message: "failed to read response"}
	}

	var env envelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			// Not the standard envelope; keep the status, synthesize a message.
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return Response{Status: resp.StatusCode, Data: body}
			}
			return Response{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
	}

	out := Response{Status: resp.StatusCode, Message: env.Message, Data: env.Data}
	if !out.OK() && out.Message == "" {
		out.Message = "an error occurred"
	}
	return out
}

func marshalBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	return json.Marshal(body)
}

// drain discards and closes a response body so the pooled connection can be
// reused before the retry.
func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

// Version is the client version reported in the User-Agent header
// (overridden at build time).
var Version = "0.1.0"
