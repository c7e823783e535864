package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/neurofinance/spready/internal/log"
)

// Service exposes typed session and message operations against the backend.
//
// Reads of auxiliary data (message lists) degrade to empty results so the
// chat view always renders; writes and the session list propagate their
// errors because the caller must know they failed.
type Service struct {
	client *Client
	public *Client
	cache  *sessionCache
	logger log.Logger
	now    func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCacheTTL overrides the session-list cache TTL.
func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = newSessionCache(ttl, s.now)
	}
}

// WithClock injects the time source used for cache aging and synthesized
// timestamps. Tests use this to step across the TTL boundary.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
		s.cache = newSessionCache(s.cache.ttl, now)
	}
}

// WithPublicClient sets the credential-free client used for endpoints that
// must not require authentication (health checks).
func WithPublicClient(public *Client) ServiceOption {
	return func(s *Service) { s.public = public }
}

// NewService creates a Service on top of client.
func NewService(client *Client, logger log.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	s := &Service{
		client: client,
		logger: logger,
		now:    time.Now,
	}
	s.cache = newSessionCache(DefaultCacheTTL, s.now)
	for _, opt := range opts {
		opt(s)
	}
	if s.public == nil {
		s.public = NewPublicClient(client.BaseURL(), WithLogger(logger))
	}
	return s
}

// Sessions returns the user's sessions. A cached list younger than the TTL
// is returned without a network call; otherwise the list is fetched,
// transformed and cached. Fetch failures propagate — there is no fixture
// fallback.
func (s *Service) Sessions(ctx context.Context) ([]Session, error) {
	if cached, ok := s.cache.get(); ok {
		return cached, nil
	}

	var wire []wireSession
	if err := s.client.do(ctx, http.MethodGet, "/sessions", nil, &wire); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]Session, 0, len(wire))
	for _, w := range wire {
		sessions = append(sessions, w.toSession(s.timestamp))
	}
	s.cache.put(sessions)
	return sessions, nil
}

// CreateSession registers a fresh session under id: empty artifact list, a
// derived output folder and the default conversation label. Implemented as
// an upsert, exactly like the web client.
func (s *Service) CreateSession(ctx context.Context, id string) (Session, error) {
	folder := outputFolderFor(id)
	sess, err := s.UpdateSession(ctx, id, nil, folder, DefaultLastMessage)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// UpdateSession upserts a session's artifact list, output folder and
// last-message summary. The session-list cache is invalidated
// unconditionally on success so the next Sessions call reflects the write.
func (s *Service) UpdateSession(ctx context.Context, id string, htmlFiles []string, outputFolder, lastMessage string) (Session, error) {
	if htmlFiles == nil {
		htmlFiles = []string{}
	}
	req := updateSessionRequest{
		HTMLFiles:    htmlFiles,
		OutputFolder: outputFolder,
		LastMessage:  lastMessage,
	}

	var wire wireSession
	if err := s.client.do(ctx, http.MethodPut, "/sessions/"+id, req, &wire); err != nil {
		return Session{}, fmt.Errorf("update session %s: %w", id, err)
	}

	sess := wire.toSession(s.timestamp)
	if sess.OutputFolder == "" {
		sess.OutputFolder = outputFolder
	}
	s.cache.invalidate()

	s.logger.Debug("session updated", "id", sess.ID, "html_files", len(sess.HTMLFiles))
	return sess, nil
}

// SessionMessages fetches the message history of a session. Messages are
// best-effort: any failure is logged and yields an empty list, never an
// error, because a chat view with no messages is a valid renderable state.
func (s *Service) SessionMessages(ctx context.Context, sessionID string) []Message {
	var wire []wireMessage
	if err := s.client.do(ctx, http.MethodGet, "/sessions/"+sessionID+"/messages", nil, &wire); err != nil {
		s.logger.Warn("loading messages failed, rendering empty history", "session", sessionID, "error", err)
		return []Message{}
	}

	messages := make([]Message, 0, len(wire))
	for _, w := range wire {
		messages = append(messages, w.toMessage())
	}
	return messages
}

// AddMessage durably records one chat turn. HTML artifact fields are never
// sent here; those belong only to assistant responses produced by Ask.
func (s *Service) AddMessage(ctx context.Context, sessionID, content string, sender Sender) (Message, error) {
	req := addMessageRequest{Content: content, Sender: string(sender)}

	var wire wireMessage
	if err := s.client.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/messages", req, &wire); err != nil {
		return Message{}, fmt.Errorf("add message to %s: %w", sessionID, err)
	}
	return wire.toMessage(), nil
}

// Ask sends a question to the backend agent. Callers must record the user's
// message via AddMessage before asking; reordering risks losing the message
// when the ask fails independently.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (AskResponse, error) {
	req := askRequest{SessionID: sessionID, Question: question}

	var wire askResponse
	if err := s.client.do(ctx, http.MethodPost, "/ask", req, &wire); err != nil {
		return AskResponse{}, fmt.Errorf("ask agent: %w", err)
	}

	resp := AskResponse{
		Answer:       wire.Answer,
		HTMLFiles:    wire.HTMLFiles,
		OutputFolder: wire.OutputFolder,
	}
	if resp.HTMLFiles == nil {
		resp.HTMLFiles = []string{}
	}
	return resp, nil
}

// Health probes backend liveness through the credential-free client.
func (s *Service) Health(ctx context.Context) error {
	if err := s.public.do(ctx, http.MethodGet, "/health", nil, nil); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

// InvalidateSessions drops the cached session list. The next Sessions call
// goes to the network.
func (s *Service) InvalidateSessions() {
	s.cache.invalidate()
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// outputFolderFor derives the server-side storage bucket name for a new
// session. Mirrors the backend's naming convention.
func outputFolderFor(sessionID string) string {
	short := sessionID
	if len(short) > 4 {
		short = short[:4]
	}
	return "user_question_output_" + short
}
