package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neurofinance/spready/internal/log"
)

// fakeClock is a settable time source for crossing the cache TTL.
type fakeClock struct {
	now atomic.Int64
}

func newFakeClock() *fakeClock {
	c := &fakeClock{}
	c.now.Store(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).UnixNano())
	return c
}

func (c *fakeClock) Now() time.Time {
	return time.Unix(0, c.now.Load())
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now.Add(int64(d))
}

// newTestService wires a Service against an httptest handler.
func newTestService(t *testing.T, clock *fakeClock, handler http.Handler) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)
	opts := []ServiceOption{WithPublicClient(NewPublicClient(srv.URL))}
	if clock != nil {
		opts = append(opts, WithClock(clock.Now))
	}
	return NewService(client, log.NewNop(), opts...)
}

func sessionsHandler(listCalls *atomic.Int32) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		listCalls.Add(1)
		json.NewEncoder(w).Encode([]wireSession{
			{ID: "s1", LastMessage: "Revenue by segment", HTMLFiles: []string{"a.html"}, OutputFolder: "out1"},
			{ID: "s2"},
		})
	})
	mux.HandleFunc("PUT /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req updateSessionRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(wireSession{
			ID:           r.PathValue("id"),
			LastMessage:  req.LastMessage,
			HTMLFiles:    req.HTMLFiles,
			OutputFolder: req.OutputFolder,
		})
	})
	return mux
}

func TestSessions_CachedWithinTTL(t *testing.T) {
	var listCalls atomic.Int32
	clock := newFakeClock()
	svc := newTestService(t, clock, sessionsHandler(&listCalls))
	ctx := context.Background()

	first, err := svc.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("Sessions() returned %d sessions, want 2", len(first))
	}

	clock.Advance(DefaultCacheTTL - time.Millisecond)
	second, err := svc.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if got := listCalls.Load(); got != 1 {
		t.Errorf("network calls = %d, want 1 (second read must hit the cache)", got)
	}
	if second[0].ID != first[0].ID {
		t.Errorf("cached list diverged: %q vs %q", second[0].ID, first[0].ID)
	}
}

func TestSessions_RefetchesAfterTTL(t *testing.T) {
	var listCalls atomic.Int32
	clock := newFakeClock()
	svc := newTestService(t, clock, sessionsHandler(&listCalls))
	ctx := context.Background()

	if _, err := svc.Sessions(ctx); err != nil {
		t.Fatal(err)
	}
	clock.Advance(DefaultCacheTTL + time.Millisecond)
	if _, err := svc.Sessions(ctx); err != nil {
		t.Fatal(err)
	}

	if got := listCalls.Load(); got != 2 {
		t.Errorf("network calls = %d, want 2 after TTL expiry", got)
	}
}

func TestSessions_TransformsBackendFields(t *testing.T) {
	var listCalls atomic.Int32
	svc := newTestService(t, nil, sessionsHandler(&listCalls))

	sessions, err := svc.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}

	got := sessions[0]
	if got.LastMessage != "Revenue by segment" {
		t.Errorf("LastMessage = %q, want backend last_message", got.LastMessage)
	}
	if len(got.HTMLFiles) != 1 || got.HTMLFiles[0] != "a.html" {
		t.Errorf("HTMLFiles = %v, want [a.html]", got.HTMLFiles)
	}
	if got.OutputFolder != "out1" {
		t.Errorf("OutputFolder = %q, want out1", got.OutputFolder)
	}

	// Absent optional fields get defaults, not zero values.
	if sessions[1].LastMessage != DefaultLastMessage {
		t.Errorf("empty last_message = %q, want %q", sessions[1].LastMessage, DefaultLastMessage)
	}
	if sessions[1].HTMLFiles == nil {
		t.Error("HTMLFiles = nil, want empty slice")
	}
}

func TestSessions_FailurePropagates(t *testing.T) {
	svc := newTestService(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "boom"}`, http.StatusInternalServerError)
	}))

	if _, err := svc.Sessions(context.Background()); err == nil {
		t.Fatal("Sessions() error = nil, want propagated failure (no fixture fallback)")
	}
}

func TestUpdateSession_InvalidatesCache(t *testing.T) {
	var listCalls atomic.Int32
	clock := newFakeClock()
	svc := newTestService(t, clock, sessionsHandler(&listCalls))
	ctx := context.Background()

	if _, err := svc.Sessions(ctx); err != nil {
		t.Fatal(err)
	}

	// Still inside the TTL, but the write must bust the cache.
	if _, err := svc.UpdateSession(ctx, "s1", []string{"a.html", "b.html"}, "out1", "new summary"); err != nil {
		t.Fatalf("UpdateSession() error = %v", err)
	}
	if _, err := svc.Sessions(ctx); err != nil {
		t.Fatal(err)
	}

	if got := listCalls.Load(); got != 2 {
		t.Errorf("network calls = %d, want 2 (no stale cache window survives a write)", got)
	}
}

func TestCreateSession_DerivesOutputFolder(t *testing.T) {
	var gotBody updateSessionRequest
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(wireSession{ID: r.PathValue("id"), OutputFolder: gotBody.OutputFolder})
	})
	svc := newTestService(t, nil, mux)

	sess, err := svc.CreateSession(context.Background(), "abcd-efgh")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if gotBody.OutputFolder != "user_question_output_abcd" {
		t.Errorf("output_folder = %q, want derived from the id prefix", gotBody.OutputFolder)
	}
	if gotBody.LastMessage != DefaultLastMessage {
		t.Errorf("last_message = %q, want %q", gotBody.LastMessage, DefaultLastMessage)
	}
	if len(gotBody.HTMLFiles) != 0 {
		t.Errorf("html_files = %v, want empty", gotBody.HTMLFiles)
	}
	if sess.ID != "abcd-efgh" {
		t.Errorf("session ID = %q, want abcd-efgh", sess.ID)
	}
}

func TestSessionMessages_ServerErrorYieldsEmptyList(t *testing.T) {
	svc := newTestService(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "db down"}`, http.StatusInternalServerError)
	}))

	got := svc.SessionMessages(context.Background(), "abc")
	if got == nil {
		t.Fatal("SessionMessages() = nil, want empty slice")
	}
	if len(got) != 0 {
		t.Errorf("SessionMessages() returned %d messages, want 0", len(got))
	}
}

func TestSessionMessages_TransformsBackendFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]wireMessage{
			{ID: "m1", Content: "What is revenue?", Sender: "user"},
			{ID: "m2", Content: "Revenue is X.", Sender: "assistant", HTMLFiles: []string{"chart.html"}, OutputFolder: "out1"},
		})
	})
	svc := newTestService(t, nil, mux)

	got := svc.SessionMessages(context.Background(), "s1")
	if len(got) != 2 {
		t.Fatalf("SessionMessages() returned %d messages, want 2", len(got))
	}
	if got[0].Sender != SenderUser {
		t.Errorf("Sender = %q, want %q", got[0].Sender, SenderUser)
	}
	if got[1].HTMLFiles[0] != "chart.html" {
		t.Errorf("HTMLFiles = %v, want [chart.html]", got[1].HTMLFiles)
	}
}

func TestAddMessage_SendsContentAndSenderOnly(t *testing.T) {
	var raw map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		json.NewEncoder(w).Encode(wireMessage{ID: "srv-1", Content: raw["content"].(string), Sender: raw["sender"].(string)})
	})
	svc := newTestService(t, nil, mux)

	msg, err := svc.AddMessage(context.Background(), "s1", "hello", SenderUser)
	if err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}

	if msg.ID != "srv-1" {
		t.Errorf("message ID = %q, want server id", msg.ID)
	}
	if _, has := raw["html_files"]; has {
		t.Error("add-message payload carries html_files; artifacts belong only to ask responses")
	}
}

func TestAsk_RoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ask", func(w http.ResponseWriter, r *http.Request) {
		var req askRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.SessionID != "s1" || req.Question != "What is revenue?" {
			http.Error(w, `{"detail": "bad request"}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(askResponse{
			Answer:       "X",
			OutputFolder: "out1",
			HTMLFiles:    []string{"a.html"},
		})
	})
	svc := newTestService(t, nil, mux)

	resp, err := svc.Ask(context.Background(), "s1", "What is revenue?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.Answer != "X" {
		t.Errorf("Answer = %q, want X", resp.Answer)
	}
	if len(resp.HTMLFiles) != 1 || resp.HTMLFiles[0] != "a.html" {
		t.Errorf("HTMLFiles = %v, want [a.html]", resp.HTMLFiles)
	}
}

func TestHealth(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"status": "ok"}`))
	})
	svc := newTestService(t, nil, mux)

	if err := svc.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if gotAuth != "" {
		t.Errorf("health check sent Authorization %q, want none", gotAuth)
	}
}
