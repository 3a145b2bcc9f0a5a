// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jeranaias/paichat-tui/internal/auth"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// newTestClient wires a client and guard against a test server. The guard's
// refresh function swaps in the "fresh" pair without a network call.
func newTestClient(t *testing.T, srv *httptest.Server) (*Client, *auth.Guard) {
	t.Helper()
	client := NewClient(srv.URL)
	guard := auth.NewGuard(func(ctx context.Context, refreshToken string) (string, string, error) {
		return "fresh-access", "fresh-refresh", nil
	})
	client.SetGuard(guard)
	if err := guard.SetTokens("stale-access", "stale-refresh"); err != nil {
		t.Fatal(err)
	}
	return client, guard
}

func writeEnvelope(w http.ResponseWriter, status int, message string, data any) {
	raw, _ := json.Marshal(data)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"message": message, "data": json.RawMessage(raw)})
}

// =============================================================================
// RESPONSE TESTS
// =============================================================================

func TestResponse_Err(t *testing.T) {
	if err := (Response{Status: 200}).Err(); err != nil {
		t.Errorf("success Err = %v, want nil", err)
	}
	if err := (Response{Status: 404, Message: "not found"}).Err(); err == nil {
		t.Error("failure should yield an error")
	}
	if err := (Response{Status: 500}).Err(); err == nil {
		t.Error("failure without message should still yield an error")
	}
}

// =============================================================================
// REQUEST PATH TESTS
// =============================================================================

func TestDo_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer stale-access" {
			t.Errorf("Authorization = %q", got)
		}
		writeEnvelope(w, 200, "ok", map[string]string{"value": "42"})
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	resp := client.Do(context.Background(), http.MethodGet, "/api/v1/chat", nil)

	if !resp.OK() {
		t.Fatalf("Do = %+v, want success", resp)
	}
	if resp.Message != "ok" {
		t.Errorf("Message = %q", resp.Message)
	}
	var data struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.Value != "42" {
		t.Errorf("Data = %s (%v)", resp.Data, err)
	}
}

func TestDo_RefreshAndRetryOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") == "Bearer fresh-access" {
			writeEnvelope(w, 200, "ok", nil)
			return
		}
		writeEnvelope(w, http.StatusUnauthorized, "token expired", nil)
	}))
	defer srv.Close()

	client, guard := newTestClient(t, srv)
	resp := client.Do(context.Background(), http.MethodGet, "/api/v1/chat", nil)

	if !resp.OK() {
		t.Fatalf("Do after refresh = %+v, want success", resp)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("server saw %d calls, want 2 (original + retry)", got)
	}
	if guard.AccessToken() != "fresh-access" {
		t.Errorf("guard token = %q, want rotated", guard.AccessToken())
	}
}

func TestDo_WithoutGuardSurfacesUnauthorized(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeEnvelope(w, http.StatusUnauthorized, "sign in required", nil)
	}))
	defer srv.Close()

	// No guard attached: the 401 comes back as a response, not a panic, and
	// no refresh retry is attempted.
	client := NewClient(srv.URL)
	resp := client.Do(context.Background(), http.MethodGet, "/api/v1/chat", nil)

	if resp.Status != http.StatusUnauthorized {
		t.Fatalf("Status = %d, want 401", resp.Status)
	}
	if resp.Message != "sign in required" {
		t.Errorf("Message = %q", resp.Message)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server saw %d calls, want 1", got)
	}
}

func TestDo_SecondAuthFailureSurfaces(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeEnvelope(w, http.StatusUnauthorized, "still expired", nil)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	resp := client.Do(context.Background(), http.MethodGet, "/api/v1/chat", nil)

	if resp.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", resp.Status)
	}
	// Exactly one retry; a second 401 must not loop.
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("server saw %d calls, want 2", got)
	}
}

func TestDo_RefreshFailureIsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, "token expired", nil)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	guard := auth.NewGuard(func(ctx context.Context, refreshToken string) (string, string, error) {
		return "", "", context.DeadlineExceeded
	})
	client.SetGuard(guard)
	guard.SetTokens("a", "r")

	resp := client.Do(context.Background(), http.MethodGet, "/api/v1/chat", nil)
	if resp.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", resp.Status)
	}
	if resp.Message != "unauthorized: token refresh failed" {
		t.Errorf("Message = %q", resp.Message)
	}
	if guard.SignedIn() {
		t.Error("guard should be signed out after a failed refresh")
	}
}

func TestDo_RefreshPathFailsClosed(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeEnvelope(w, http.StatusUnauthorized, "refresh token rejected", nil)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	resp := client.Do(context.Background(), http.MethodPost, "/api/v1/auth/refresh-token", nil)

	if resp.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", resp.Status)
	}
	// A 401 from the refresh endpoint itself must never trigger recovery.
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server saw %d calls, want 1", got)
	}
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	client, _ := newTestClient(t, srv)
	resp := client.Do(context.Background(), http.MethodGet, "/api/v1/chat", nil)

	if resp.Status != 500 {
		t.Errorf("Status = %d, want synthetic 500", resp.Status)
	}
	if resp.Message != "network error or server is unreachable" {
		t.Errorf("Message = %q", resp.Message)
	}
}

func TestDoPublic_NoAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("public request carried Authorization %q", got)
		}
		writeEnvelope(w, 200, "ok", nil)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	if resp := client.DoPublic(context.Background(), http.MethodGet, "/api/v1/chat/share/x", nil); !resp.OK() {
		t.Errorf("DoPublic = %+v", resp)
	}
}

// =============================================================================
// DECODING TESTS
// =============================================================================

func TestDo_NonEnvelopeSuccessKeepsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["a","b"]`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	resp := client.Do(context.Background(), http.MethodGet, "/api/v1/chat", nil)

	if !resp.OK() {
		t.Fatalf("Do = %+v", resp)
	}
	if string(resp.Data) != `["a","b"]` {
		t.Errorf("Data = %s, want raw body preserved", resp.Data)
	}
}

func TestDo_FailureWithoutMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"data":null}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv)
	resp := client.Do(context.Background(), http.MethodGet, "/api/v1/chat", nil)

	if resp.Status != http.StatusBadRequest {
		t.Errorf("Status = %d", resp.Status)
	}
	if resp.Message != "an error occurred" {
		t.Errorf("Message = %q, want fallback", resp.Message)
	}
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient("https://chat.example.com/")
	if c.BaseURL() != "https://chat.example.com" {
		t.Errorf("BaseURL = %q", c.BaseURL())
	}
}
