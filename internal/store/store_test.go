// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jeranaias/paichat-tui/internal/api"
	"github.com/jeranaias/paichat-tui/internal/auth"
	"github.com/jeranaias/paichat-tui/internal/model"
	"github.com/jeranaias/paichat-tui/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// newTestStore wires a store against a fake backend.
func newTestStore(t *testing.T, handler http.Handler) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL)
	guard := auth.NewGuard(func(ctx context.Context, refreshToken string) (string, string, error) {
		return "a", "r", nil
	})
	client.SetGuard(guard)
	guard.SetTokens("a", "r")

	return New(client, nil, 30)
}

// writeData writes the backend envelope with data as raw JSON.
func writeData(w http.ResponseWriter, status int, message, data string) {
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"message":%q,"data":%s}`, message, data)
}

// sendHandler answers the send, resubmit and title endpoints with a fixed
// conversation id and answer text.
func sendHandler(sessionID, answer string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, 200, "ok", fmt.Sprintf(
			`{"session_id":%q,"response":%q,"ai_message":{"id":101,"message":%q},"duration":1.25}`,
			sessionID, answer, answer))
	})
	mux.HandleFunc("POST /api/v1/chat/title", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, 200, "ok", `{"title":"Generated title"}`)
	})
	return mux
}

// generatingCount counts unsettled placeholders across all threads.
func generatingCount(st *Store) int {
	n := 0
	for _, conv := range st.Conversations() {
		for _, msg := range conv.Messages {
			if msg.IsGenerating {
				n++
			}
		}
	}
	return n
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSend_NewConversationAdoptsServerID(t *testing.T) {
	st := newTestStore(t, sendHandler("srv-1", "the answer"))

	if err := st.Send(context.Background(), "hi there"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	conv, ok := st.ActiveThread()
	if !ok {
		t.Fatal("no active thread after send")
	}
	if conv.ID != "srv-1" {
		t.Errorf("conversation ID = %q, want server-assigned id", conv.ID)
	}
	if st.ActiveID() != "srv-1" {
		t.Errorf("ActiveID = %q, want rewritten to server id", st.ActiveID())
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(conv.Messages))
	}
	if conv.Messages[0].Role != model.RoleUser || conv.Messages[0].Content != "hi there" {
		t.Errorf("user message = %+v", conv.Messages[0])
	}
	answer := conv.Messages[1]
	if answer.Role != model.RoleAssistant || answer.Content != "the answer" {
		t.Errorf("assistant message = %+v", answer)
	}
	if answer.IsGenerating {
		t.Error("settled answer still marked generating")
	}
	if answer.Duration != 1.25 {
		t.Errorf("Duration = %v, want 1.25", answer.Duration)
	}
	if answer.OriginalID != "101" {
		t.Errorf("OriginalID = %q, want server message id", answer.OriginalID)
	}
}

func TestSend_EmptyMessage(t *testing.T) {
	st := newTestStore(t, sendHandler("srv-1", "x"))

	if err := st.Send(context.Background(), "   \n "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Send whitespace = %v, want ErrEmptyMessage", err)
	}
	if len(st.Conversations()) != 0 {
		t.Error("empty send must not create a conversation")
	}
}

func TestSend_FailureRemovesPlaceholderKeepsQuestion(t *testing.T) {
	st := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, 500, "model overloaded", "null")
	}))

	if err := st.Send(context.Background(), "doomed question"); err == nil {
		t.Fatal("Send should surface the server failure")
	}

	conv, ok := st.ActiveThread()
	if !ok {
		t.Fatal("failed send should still leave the thread selected")
	}
	if !conv.IsLocal() {
		t.Error("failed first send must leave the thread local")
	}
	if len(conv.Messages) != 1 || conv.Messages[0].Content != "doomed question" {
		t.Errorf("Messages = %+v, want the question kept for retry", conv.Messages)
	}
	if generatingCount(st) != 0 {
		t.Error("orphaned placeholder after failed send")
	}
}

func TestSend_OverlappingSendsOnNewThread(t *testing.T) {
	// Two sends race on a still-local thread. The second settles first and
	// adopts the server session id; the first must still find and settle its
	// placeholder after the rename.
	release := make(chan struct{})
	firstArrived := make(chan struct{})
	var calls int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(firstArrived)
			<-release
			writeData(w, 200, "ok",
				`{"session_id":"srv-7","response":"first answer","ai_message":{"id":101,"message":"first answer"},"duration":0.5}`)
			return
		}
		writeData(w, 200, "ok",
			`{"session_id":"srv-7","response":"second answer","ai_message":{"id":102,"message":"second answer"},"duration":0.5}`)
	})
	mux.HandleFunc("POST /api/v1/chat/title", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, 200, "ok", `{"title":"Generated title"}`)
	})
	st := newTestStore(t, mux)

	firstDone := make(chan error, 1)
	go func() { firstDone <- st.Send(context.Background(), "first question") }()
	<-firstArrived // first exchange spliced, its request held open

	if err := st.Send(context.Background(), "second question"); err != nil {
		t.Fatalf("second Send: %v", err)
	}

	// The second send settled and renamed the thread while the first reply
	// is still pending: one timeline with all four entries, one of them
	// still generating.
	conv, ok := st.ActiveThread()
	if !ok {
		t.Fatal("no active thread")
	}
	if conv.ID != "srv-7" {
		t.Fatalf("conversation ID = %q, want server id after second settle", conv.ID)
	}
	if len(conv.Messages) != 4 {
		t.Fatalf("len(Messages) = %d, want both exchanges interleaved", len(conv.Messages))
	}
	if conv.Messages[0].Content != "first question" || conv.Messages[2].Content != "second question" {
		t.Errorf("timeline order = %q, %q", conv.Messages[0].Content, conv.Messages[2].Content)
	}
	if !conv.Messages[1].IsGenerating {
		t.Error("first placeholder should still be generating")
	}
	if conv.Messages[3].IsGenerating || conv.Messages[3].Content != "second answer" {
		t.Errorf("Messages[3] = %+v, want settled second answer", conv.Messages[3])
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first Send: %v", err)
	}

	conv, _ = st.ActiveThread()
	if len(conv.Messages) != 4 {
		t.Fatalf("len(Messages) = %d after both settles, want 4", len(conv.Messages))
	}
	if conv.Messages[1].Content != "first answer" {
		t.Errorf("Messages[1].Content = %q, want first answer", conv.Messages[1].Content)
	}
	if n := generatingCount(st); n != 0 {
		t.Errorf("generatingCount = %d after both settles, want 0", n)
	}
	if len(st.Conversations()) != 1 {
		t.Errorf("len(Conversations) = %d, want a single thread", len(st.Conversations()))
	}
}

// =============================================================================
// STREAMING SEND TESTS
// =============================================================================

func TestSendStreaming_AssemblesAnswer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		fmt.Fprint(w, "event: chunk\ndata: {\"text\":\"Hel\"}\n\n")
		fl.Flush()
		fmt.Fprint(w, "event: chunk\ndata: {\"text\":\"lo\"}\n\n")
		fl.Flush()
		fmt.Fprint(w, "event: done\ndata: {\"session_id\":\"srv-9\",\"response\":\"Hello\",\"duration\":0.5}\n\n")
	})
	mux.HandleFunc("POST /api/v1/chat/title", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, 200, "ok", `{"title":"t"}`)
	})
	st := newTestStore(t, mux)

	var changes int32
	st.SetOnChange(func() { atomic.AddInt32(&changes, 1) })

	if err := st.SendStreaming(context.Background(), "hi"); err != nil {
		t.Fatalf("SendStreaming: %v", err)
	}

	conv, ok := st.ActiveThread()
	if !ok {
		t.Fatal("no active thread")
	}
	if conv.ID != "srv-9" {
		t.Errorf("ID = %q, want adopted from done payload", conv.ID)
	}
	answer := conv.Messages[len(conv.Messages)-1]
	if answer.Content != "Hello" || answer.IsGenerating {
		t.Errorf("answer = %+v", answer)
	}
	// compose + two fragments + settle at minimum.
	if atomic.LoadInt32(&changes) < 4 {
		t.Errorf("change callback fired %d times, want per-fragment updates", changes)
	}
}

func TestSendStreaming_ConnectionDropKeepsPartial(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: chunk\ndata: {\"text\":\"partial answ\"}\n\n")
		// Connection closes without a done event.
	})
	mux.HandleFunc("POST /api/v1/chat/title", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, 200, "ok", `{"title":"t"}`)
	})
	st := newTestStore(t, mux)

	if err := st.SendStreaming(context.Background(), "hi"); err != nil {
		t.Fatalf("SendStreaming: %v", err)
	}

	conv, _ := st.ActiveThread()
	answer := conv.Messages[len(conv.Messages)-1]
	if answer.Content != "partial answ" || answer.IsGenerating {
		t.Errorf("partial answer should settle as-is, got %+v", answer)
	}
}

func TestSendStreaming_EmptyStreamFails(t *testing.T) {
	st := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
	}))

	if err := st.SendStreaming(context.Background(), "hi"); err == nil {
		t.Fatal("stream with no answer should fail")
	}
	if generatingCount(st) != 0 {
		t.Error("orphaned placeholder after empty stream")
	}
	conv, _ := st.ActiveThread()
	if len(conv.Messages) != 1 {
		t.Errorf("Messages = %+v, want only the question", conv.Messages)
	}
}

// =============================================================================
// RESUBMIT / EDIT TESTS
// =============================================================================

// seedThread installs a settled four-message conversation as active.
func seedThread(st *Store) {
	st.mu.Lock()
	st.conversations = []model.Conversation{{
		ID:           "srv-1",
		Title:        "Seeded",
		LastActivity: time.Now(),
		Messages: []model.Message{
			{ID: "u1", Role: model.RoleUser, Content: "first question", OriginalID: "11"},
			{ID: "a1", Role: model.RoleAssistant, Content: "first answer", OriginalID: "12"},
			{ID: "u2", Role: model.RoleUser, Content: "second question", OriginalID: "13"},
			{ID: "a2", Role: model.RoleAssistant, Content: "second answer", OriginalID: "14"},
		},
	}}
	st.activeID = "srv-1"
	st.mu.Unlock()
}

func resubmitHandler(t *testing.T, wantQuery string, wantMessageID int64) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat/resubmit", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string `json:"query"`
			SessionID string `json:"session_id"`
			MessageID int64  `json:"message_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding resubmit body: %v", err)
		}
		if body.Query != wantQuery {
			t.Errorf("resubmit query = %q, want %q", body.Query, wantQuery)
		}
		if body.SessionID != "srv-1" {
			t.Errorf("resubmit session_id = %q", body.SessionID)
		}
		if body.MessageID != wantMessageID {
			t.Errorf("resubmit message_id = %d, want %d", body.MessageID, wantMessageID)
		}
		writeData(w, 200, "ok", `{"session_id":"srv-1","response":"regenerated","duration":0.8}`)
	})
	return mux
}

func TestResubmit_TruncatesTargetAndTail(t *testing.T) {
	st := newTestStore(t, resubmitHandler(t, "first question", 11))
	seedThread(st)

	if err := st.Resubmit(context.Background(), "u1"); err != nil {
		t.Fatalf("Resubmit: %v", err)
	}

	conv, _ := st.ActiveThread()
	if len(conv.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2 (old exchange and tail discarded)", len(conv.Messages))
	}
	if conv.Messages[0].Content != "first question" || conv.Messages[0].Role != model.RoleUser {
		t.Errorf("Messages[0] = %+v", conv.Messages[0])
	}
	if conv.Messages[0].ID == "u1" {
		t.Error("resubmitted question should be a fresh message, not the old one")
	}
	if conv.Messages[1].Content != "regenerated" || conv.Messages[1].IsGenerating {
		t.Errorf("Messages[1] = %+v", conv.Messages[1])
	}
}

func TestEdit_ReplacesQuestionText(t *testing.T) {
	st := newTestStore(t, resubmitHandler(t, "edited question", 13))
	seedThread(st)

	if err := st.Edit(context.Background(), "u2", "edited question"); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	conv, _ := st.ActiveThread()
	if len(conv.Messages) != 4 {
		t.Fatalf("len(Messages) = %d, want 4 (first exchange intact)", len(conv.Messages))
	}
	if conv.Messages[1].Content != "first answer" {
		t.Errorf("first exchange should survive, got %+v", conv.Messages[1])
	}
	if conv.Messages[2].Content != "edited question" {
		t.Errorf("Messages[2] = %+v, want edited text", conv.Messages[2])
	}
	if conv.Messages[3].Content != "regenerated" {
		t.Errorf("Messages[3] = %+v", conv.Messages[3])
	}
}

func TestResubmit_FailureRestoresNothingGenerating(t *testing.T) {
	st := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, 500, "no", "null")
	}))
	seedThread(st)

	if err := st.Resubmit(context.Background(), "u2"); err == nil {
		t.Fatal("Resubmit should surface the failure")
	}
	if generatingCount(st) != 0 {
		t.Error("orphaned placeholder after failed resubmit")
	}
}

func TestResubmit_RejectsAssistantTarget(t *testing.T) {
	st := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	seedThread(st)

	if err := st.Resubmit(context.Background(), "a1"); !errors.Is(err, ErrNoSuchMessage) {
		t.Errorf("Resubmit assistant message = %v, want ErrNoSuchMessage", err)
	}
}

// =============================================================================
// FEEDBACK TESTS
// =============================================================================

func TestFeedback_ToggleAndExclusivity(t *testing.T) {
	var lastBody struct {
		MessageID string `json:"message_id"`
		Positive  bool   `json:"positive_feedback"`
		Negative  bool   `json:"negative_feedback"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat/feedback", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&lastBody)
		writeData(w, 200, "ok", "null")
	})
	st := newTestStore(t, mux)
	seedThread(st)
	ctx := context.Background()

	flags := func() (bool, bool) {
		conv, _ := st.ActiveThread()
		msg := conv.Messages[1] // a1
		return msg.PositiveFeedback, msg.NegativeFeedback
	}

	if err := st.Like(ctx, "a1"); err != nil {
		t.Fatalf("Like: %v", err)
	}
	if pos, neg := flags(); !pos || neg {
		t.Errorf("after Like: pos=%v neg=%v", pos, neg)
	}
	if lastBody.MessageID != "12" {
		t.Errorf("feedback used message_id %q, want server id", lastBody.MessageID)
	}

	// Dislike flips the flags, never both set.
	if err := st.Dislike(ctx, "a1"); err != nil {
		t.Fatalf("Dislike: %v", err)
	}
	if pos, neg := flags(); pos || !neg {
		t.Errorf("after Dislike: pos=%v neg=%v", pos, neg)
	}

	// A second dislike toggles it off.
	if err := st.Dislike(ctx, "a1"); err != nil {
		t.Fatalf("second Dislike: %v", err)
	}
	if pos, neg := flags(); pos || neg {
		t.Errorf("after toggle off: pos=%v neg=%v", pos, neg)
	}
}

func TestFeedback_RevertOnServerFailure(t *testing.T) {
	st := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, 500, "no", "null")
	}))
	seedThread(st)

	if err := st.Like(context.Background(), "a1"); err == nil {
		t.Fatal("Like should surface the failure")
	}
	conv, _ := st.ActiveThread()
	if conv.Messages[1].PositiveFeedback || conv.Messages[1].NegativeFeedback {
		t.Error("optimistic flags should revert after a rejected call")
	}
}

func TestFeedback_RejectsUserAndGenerating(t *testing.T) {
	st := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	seedThread(st)
	st.mu.Lock()
	st.conversations[0].Messages = append(st.conversations[0].Messages,
		model.Message{ID: "pending", Role: model.RoleAssistant, IsGenerating: true})
	st.mu.Unlock()

	if err := st.Like(context.Background(), "u1"); !errors.Is(err, ErrNoSuchMessage) {
		t.Errorf("Like on user message = %v, want ErrNoSuchMessage", err)
	}
	if err := st.Like(context.Background(), "pending"); !errors.Is(err, ErrNoSuchMessage) {
		t.Errorf("Like on placeholder = %v, want ErrNoSuchMessage", err)
	}
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func historyHandler(t *testing.T, pages map[int]string) (http.Handler, *int32) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		page := r.URL.Query().Get("page")
		data, ok := pages[atoi(page)]
		if !ok {
			t.Errorf("unexpected history page %q", page)
			writeData(w, 400, "bad page", "null")
			return
		}
		writeData(w, 200, "ok", data)
	})
	return mux, &calls
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

func TestLoadPage_MergeAndPagination(t *testing.T) {
	handler, calls := historyHandler(t, map[int]string{
		1: `{"sessions":[
				{"session_id":"s-1","title":"Server title","date_time":"2025-06-01 10:00:00"},
				{"session_id":"s-2","title":"Second","date_time":"2025-05-30 09:00:00"}],
			"pagination":{"current_page":1,"total_pages":2}}`,
		2: `{"sessions":[
				{"session_id":"s-3","title":"Third","date_time":"2025-05-01 08:00:00"}],
			"pagination":{"current_page":2,"total_pages":2}}`,
	})
	st := newTestStore(t, handler)

	// Local state for s-1 predates the listing: transcript and activity must
	// survive the merge, only the missing title is filled.
	st.mu.Lock()
	st.conversations = []model.Conversation{{
		ID:           "s-1",
		LastActivity: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Messages:     []model.Message{{ID: "m", Role: model.RoleUser, Content: "kept"}},
	}}
	st.mu.Unlock()

	ctx := context.Background()
	if err := st.LoadPage(ctx); err != nil {
		t.Fatalf("LoadPage: %v", err)
	}

	convs := st.Conversations()
	if len(convs) != 2 {
		t.Fatalf("len(convs) = %d, want 2", len(convs))
	}
	if convs[0].ID != "s-1" {
		t.Errorf("newest first order broken: %q", convs[0].ID)
	}
	if convs[0].Title != "Server title" {
		t.Errorf("empty local title should be filled, got %q", convs[0].Title)
	}
	if len(convs[0].Messages) != 1 || convs[0].Messages[0].Content != "kept" {
		t.Error("merge must not drop the local transcript")
	}
	if page := st.Pagination(); !page.HasNext || page.CurrentPage != 1 {
		t.Errorf("Pagination = %+v", page)
	}

	if err := st.LoadPage(ctx); err != nil {
		t.Fatalf("second LoadPage: %v", err)
	}
	if page := st.Pagination(); page.HasNext {
		t.Errorf("Pagination after last page = %+v", page)
	}
	if len(st.Conversations()) != 3 {
		t.Errorf("len(convs) = %d, want 3", len(st.Conversations()))
	}

	// All pages consumed: further loads are free no-ops.
	if err := st.LoadPage(ctx); err != nil {
		t.Fatalf("LoadPage past end: %v", err)
	}
	if got := atomic.LoadInt32(calls); got != 2 {
		t.Errorf("server saw %d history calls, want 2", got)
	}
}

func TestLoadPage_Reentrancy(t *testing.T) {
	st := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	st.mu.Lock()
	st.loadingHistory = true
	st.mu.Unlock()

	if err := st.LoadPage(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent LoadPage = %v, want ErrBusy", err)
	}
}

func TestLoadPage_OfflineCacheFallback(t *testing.T) {
	cache, err := storage.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()
	ctx := context.Background()
	if err := cache.SaveSummaries(ctx, []model.Conversation{
		{ID: "cached-1", Title: "From cache", LastActivity: time.Unix(1000, 0)},
	}); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // unreachable backend
	client := api.NewClient(srv.URL)

	st := New(client, cache, 30)

	if err := st.LoadPage(ctx); err != nil {
		t.Fatalf("LoadPage with cache fallback: %v", err)
	}
	convs := st.Conversations()
	if len(convs) != 1 || convs[0].ID != "cached-1" {
		t.Errorf("Conversations = %+v, want cached listing", convs)
	}
}

// =============================================================================
// SELECTION AND DELETION TESTS
// =============================================================================

func TestSelect_LoadsTranscriptOnce(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/chat/s-1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeData(w, 200, "ok", `{"messages":[
			{"id":1,"type":"human","message":"the question","date_time":"2025-06-01 10:00:00"},
			{"id":2,"type":"ai","message":"the answer","duration":2.0,"positive_feedback":true}]}`)
	})
	st := newTestStore(t, mux)
	st.mu.Lock()
	st.conversations = []model.Conversation{{ID: "s-1", Title: "t", LastActivity: time.Now()}}
	st.mu.Unlock()

	ctx := context.Background()
	if err := st.Select(ctx, "s-1"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	conv, _ := st.ActiveThread()
	if len(conv.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(conv.Messages))
	}
	if conv.Messages[0].Role != model.RoleUser || conv.Messages[0].OriginalID != "1" {
		t.Errorf("Messages[0] = %+v", conv.Messages[0])
	}
	if conv.Messages[1].Role != model.RoleAssistant || !conv.Messages[1].PositiveFeedback {
		t.Errorf("Messages[1] = %+v", conv.Messages[1])
	}

	// Reselecting is a no-op; the transcript is already held.
	if err := st.Select(ctx, "s-1"); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server saw %d transcript calls, want 1", got)
	}
}

func TestSelect_UnknownConversation(t *testing.T) {
	st := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	if err := st.Select(context.Background(), "nope"); !errors.Is(err, ErrNoActiveConversation) {
		t.Errorf("Select unknown = %v, want ErrNoActiveConversation", err)
	}
}

func TestNewThread_LocalDeleteSkipsServer(t *testing.T) {
	st := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("local thread operations must not reach the server")
	}))

	id := st.NewThread()
	if st.ActiveID() != id {
		t.Errorf("ActiveID = %q, want the fresh thread", st.ActiveID())
	}
	if !strings.HasPrefix(id, "local-") {
		t.Errorf("thread id = %q, want a local id", id)
	}

	if err := st.DeleteConversation(context.Background(), id); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if len(st.Conversations()) != 0 {
		t.Error("local thread should be gone")
	}
}

func TestDeleteConversation_RollbackOnFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/v1/chat/s-1", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, 500, "no", "null")
	})
	st := newTestStore(t, mux)
	st.mu.Lock()
	st.conversations = []model.Conversation{
		{ID: "s-1", Title: "first", LastActivity: time.Unix(2000, 0)},
		{ID: "s-2", Title: "second", LastActivity: time.Unix(1000, 0)},
	}
	st.activeID = "s-1"
	st.mu.Unlock()

	if err := st.DeleteConversation(context.Background(), "s-1"); err == nil {
		t.Fatal("DeleteConversation should surface the failure")
	}

	convs := st.Conversations()
	if len(convs) != 2 || convs[0].ID != "s-1" {
		t.Errorf("Conversations = %+v, want s-1 restored at its old position", convs)
	}
}

func TestDeleteConversation_Success(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/v1/chat/s-1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeData(w, 200, "deleted", "null")
	})
	st := newTestStore(t, mux)
	st.mu.Lock()
	st.conversations = []model.Conversation{{ID: "s-1", LastActivity: time.Now()}}
	st.activeID = "s-1"
	st.mu.Unlock()

	if err := st.DeleteConversation(context.Background(), "s-1"); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if len(st.Conversations()) != 0 {
		t.Error("conversation should be removed")
	}
	if st.ActiveID() != "" {
		t.Errorf("ActiveID = %q, want cleared", st.ActiveID())
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Error("server delete not issued")
	}
}
