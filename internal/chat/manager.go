// Package chat owns the client-side conversation state.
//
// Manager is the orchestration layer between the persistent state store, the
// backend data-access service and the UI: it holds the current-session
// identity, the in-memory session list, the message list for the active
// session, loading and error flags, and the currently selected HTML
// artifact. UI event handlers call its operations; the UI re-renders from
// Snapshot whenever the change channel fires.
//
// Consistency rules the Manager enforces:
//
//   - The session list is fetched at most once automatically; explicit
//     refreshes are always allowed.
//   - Message loads are tagged with the session they were issued for; a
//     completion that no longer matches the current session is discarded, so
//     rapid session switches never show another session's history.
//   - User messages appear optimistically and are reconciled with the
//     server-confirmed ID once the write lands; a temporary client ID never
//     survives as the canonical one.
//   - A question is never sent to the agent before the user's message has
//     been durably recorded.
//   - Loading flags are cleared on every exit path; no operation throws into
//     the render path.
package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/neurofinance/spready/internal/artifact"
	"github.com/neurofinance/spready/internal/backend"
	"github.com/neurofinance/spready/internal/ident"
	"github.com/neurofinance/spready/internal/log"
	"github.com/neurofinance/spready/internal/state"
)

// watchReloadTimeout bounds the message reload triggered by another process
// switching the current session.
const watchReloadTimeout = 30 * time.Second

// Service is the slice of the backend data-access layer the Manager
// consumes. Defined by the consumer so tests can script responses.
type Service interface {
	Sessions(ctx context.Context) ([]backend.Session, error)
	CreateSession(ctx context.Context, id string) (backend.Session, error)
	UpdateSession(ctx context.Context, id string, htmlFiles []string, outputFolder, lastMessage string) (backend.Session, error)
	SessionMessages(ctx context.Context, sessionID string) []backend.Message
	AddMessage(ctx context.Context, sessionID, content string, sender backend.Sender) (backend.Message, error)
	Ask(ctx context.Context, sessionID, question string) (backend.AskResponse, error)
}

// Snapshot is a copy of the Manager's state for rendering. It shares no
// mutable data with the Manager.
type Snapshot struct {
	CurrentSessionID string
	Sessions         []backend.Session
	Messages         []backend.Message
	SelectedFile     *artifact.Artifact

	LoadingSessions bool
	LoadingMessages bool
	Asking          bool

	// Err is the user-visible error banner, empty when all is well. It never
	// blocks further interaction and clears on the next success.
	Err string
}

// Manager coordinates session and message state. All methods are safe for
// concurrent use; blocking methods take a context and are expected to run
// off the render goroutine.
type Manager struct {
	svc    Service
	store  *state.Store
	logger log.Logger
	newID  func() string

	mu             sync.Mutex
	cur            string
	sessions       []backend.Session
	messages       []backend.Message
	selected       *artifact.Artifact
	errMsg         string
	loadingSess    bool
	loadingMsgs    bool
	asking         bool
	initialized    bool
	sessionsLoaded bool
	msgGen         uint64          // increments per issued message load
	pending        map[string]bool // optimistic IDs awaiting server confirmation

	notify chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithIDGenerator overrides the identifier source. Tests use this for
// deterministic IDs.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

// NewManager creates a Manager. store may be nil, in which case the current
// session does not survive restarts (everything else keeps working).
func NewManager(svc Service, store *state.Store, logger log.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = log.NewNop()
	}
	m := &Manager{
		svc:     svc,
		store:   store,
		logger:  logger,
		newID:   ident.New,
		pending: make(map[string]bool),
		notify:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Changes returns a coalesced notification channel: at least one receive is
// possible after any state change. Renderers should drain it and call
// Snapshot.
func (m *Manager) Changes() <-chan struct{} {
	return m.notify
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		CurrentSessionID: m.cur,
		Sessions:         make([]backend.Session, len(m.sessions)),
		Messages:         make([]backend.Message, len(m.messages)),
		LoadingSessions:  m.loadingSess,
		LoadingMessages:  m.loadingMsgs,
		Asking:           m.asking,
		Err:              m.errMsg,
	}
	copy(snap.Sessions, m.sessions)
	copy(snap.Messages, m.messages)
	if m.selected != nil {
		sel := *m.selected
		snap.SelectedFile = &sel
	}
	return snap
}

// Init brings the Manager from Uninitialized to Ready: resolve the current
// session ID (generating and persisting one on first run), load the session
// list once, load the active session's messages, and start watching for
// external current-session changes. Init is idempotent.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.initialized = true

	cur := ""
	if m.store != nil {
		cur = state.Get(m.store, state.KeyCurrentSession, "")
	}
	if cur == "" {
		cur = m.newID()
		m.logger.Info("no persisted session, generated new", "id", cur)
	}
	m.cur = cur
	m.mu.Unlock()

	m.persistCurrent(cur)
	m.watchCurrent()
	m.notifyChange()

	m.LoadSessions(ctx)
	m.loadMessages(ctx, cur)
	return nil
}

// CurrentSessionID returns the active session's ID, or "" when none is
// selected.
func (m *Manager) CurrentSessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// SetCurrentSession switches the active session and persists the identity.
// An empty id deselects: messages are cleared without a fetch. Selection
// state is untouched; use SelectSession when switching should also close any
// open artifact.
func (m *Manager) SetCurrentSession(ctx context.Context, id string) {
	m.mu.Lock()
	m.cur = id
	if id == "" {
		m.messages = nil
		m.msgGen++ // In-flight loads for the old session become stale.
		m.loadingMsgs = false
	}
	m.mu.Unlock()

	m.persistCurrent(id)
	m.notifyChange()

	if id != "" {
		m.loadMessages(ctx, id)
	}
}

// SelectSession is the "user clicked a session" handler: switch the current
// session and deterministically clear any open artifact view.
func (m *Manager) SelectSession(ctx context.Context, id string) {
	m.ResetSelection()
	m.SetCurrentSession(ctx, id)
}

// LoadSessions fetches the session list at most once; later calls return
// immediately. Use RefreshSessions for an explicit refetch.
func (m *Manager) LoadSessions(ctx context.Context) {
	m.mu.Lock()
	if m.sessionsLoaded {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.RefreshSessions(ctx)
}

// RefreshSessions refetches the session list unconditionally.
func (m *Manager) RefreshSessions(ctx context.Context) {
	m.mu.Lock()
	m.loadingSess = true
	m.mu.Unlock()
	m.notifyChange()

	defer func() {
		m.mu.Lock()
		m.loadingSess = false
		m.mu.Unlock()
		m.notifyChange()
	}()

	sessions, err := m.svc.Sessions(ctx)
	m.mu.Lock()
	if err != nil {
		m.errMsg = "Failed to load sessions"
		m.mu.Unlock()
		m.logger.Error("loading sessions failed", "error", err)
		return
	}
	m.sessions = sessions
	m.sessionsLoaded = true
	m.errMsg = ""
	m.mu.Unlock()
}

// CreateNewSession generates an identifier, registers the session with the
// backend, merges it into the list and makes it current. Returns nil on
// failure; the error lands in the snapshot's Err, never in the render path.
func (m *Manager) CreateNewSession(ctx context.Context) *backend.Session {
	id := m.newID()

	sess, err := m.svc.CreateSession(ctx, id)
	if err != nil {
		m.mu.Lock()
		m.errMsg = "Failed to create session"
		m.mu.Unlock()
		m.logger.Error("creating session failed", "id", id, "error", err)
		m.notifyChange()
		return nil
	}

	m.mu.Lock()
	m.sessions = mergeSession(m.sessions, sess)
	m.cur = sess.ID
	// A fresh session has no history; skip the network round trip.
	m.messages = []backend.Message{}
	m.msgGen++
	m.loadingMsgs = false
	m.errMsg = ""
	m.mu.Unlock()

	m.persistCurrent(sess.ID)
	m.notifyChange()
	return &sess
}

// UpdateSession has the dual-mode contract callers rely on: with a session
// it merges by ID (replace in place, prepend if new) without refetching;
// with nil it refetches the whole list.
func (m *Manager) UpdateSession(ctx context.Context, updated *backend.Session) {
	if updated == nil {
		m.RefreshSessions(ctx)
		return
	}

	m.mu.Lock()
	m.sessions = mergeSession(m.sessions, *updated)
	m.mu.Unlock()
	m.notifyChange()
}

// ReloadMessages refetches the current session's message list.
func (m *Manager) ReloadMessages(ctx context.Context) {
	m.mu.Lock()
	cur := m.cur
	m.mu.Unlock()

	if cur == "" {
		return
	}
	m.loadMessages(ctx, cur)
}

// loadMessages fetches the history for sid. The load is tagged with a
// generation and the session it was issued for; a completion that lost the
// race to a newer switch is discarded.
func (m *Manager) loadMessages(ctx context.Context, sid string) {
	m.mu.Lock()
	m.msgGen++
	gen := m.msgGen
	m.loadingMsgs = true
	m.mu.Unlock()
	m.notifyChange()

	msgs := m.svc.SessionMessages(ctx, sid)

	m.mu.Lock()
	if gen == m.msgGen {
		m.loadingMsgs = false
		if m.cur == sid {
			m.messages = msgs
			for id := range m.pending {
				delete(m.pending, id)
			}
		}
	}
	m.mu.Unlock()
	m.notifyChange()
}

// SelectFile opens a generated HTML artifact. It does not change the
// current session on its own; OpenFile composes both.
func (m *Manager) SelectFile(fileName, outputFolder, sessionID string) {
	sel := artifact.Artifact{
		SessionID:    sessionID,
		Filename:     fileName,
		OutputFolder: outputFolder,
	}

	m.mu.Lock()
	m.selected = &sel
	m.mu.Unlock()
	m.notifyChange()
}

// ResetSelection closes any open artifact view.
func (m *Manager) ResetSelection() {
	m.mu.Lock()
	m.selected = nil
	m.mu.Unlock()
	m.notifyChange()
}

// OpenFile is the "user clicked an artifact" handler: make its session
// current and select the file.
func (m *Manager) OpenFile(ctx context.Context, fileName, outputFolder, sessionID string) {
	m.SetCurrentSession(ctx, sessionID)
	m.SelectFile(fileName, outputFolder, sessionID)
}

// AddLocalMessage appends a message to the in-memory list synchronously,
// before any network resolution, and returns it. The ID is temporary until
// reconciled with a server-confirmed one.
func (m *Manager) AddLocalMessage(content string, sender backend.Sender) backend.Message {
	msg := backend.Message{
		ID:        m.newID(),
		Content:   content,
		Sender:    sender,
		HTMLFiles: []string{},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.pending[msg.ID] = true
	m.mu.Unlock()
	m.notifyChange()
	return msg
}

// SendMessage runs one full chat turn:
//
//  1. optimistic local append of the user message,
//  2. durable record of the user message (temporary ID reconciled with the
//     server's),
//  3. the agent ask — only after step 2 succeeded,
//  4. append of the assistant answer with its artifacts,
//  5. session upsert so the sidebar and other clients see the new artifacts.
//
// A failure at step 2 or 3 sets the error banner and returns the error; the
// conversation stays usable. A failure at step 5 is logged but does not fail
// the turn — the answer is already on screen.
func (m *Manager) SendMessage(ctx context.Context, content string) error {
	m.mu.Lock()
	sid := m.cur
	m.mu.Unlock()
	if sid == "" {
		return nil
	}

	local := m.AddLocalMessage(content, backend.SenderUser)

	m.mu.Lock()
	m.asking = true
	m.mu.Unlock()
	m.notifyChange()

	defer func() {
		m.mu.Lock()
		m.asking = false
		m.mu.Unlock()
		m.notifyChange()
	}()

	confirmed, err := m.svc.AddMessage(ctx, sid, content, backend.SenderUser)
	if err != nil {
		m.setError("Failed to send message")
		m.logger.Error("recording message failed", "session", sid, "error", err)
		return err
	}
	m.reconcile(sid, local.ID, confirmed)

	resp, err := m.svc.Ask(ctx, sid, content)
	if err != nil {
		m.setError("The agent could not answer")
		m.logger.Error("ask failed", "session", sid, "error", err)
		return err
	}

	answer := backend.Message{
		ID:           m.newID(),
		Content:      resp.Answer,
		Sender:       backend.SenderAssistant,
		HTMLFiles:    resp.HTMLFiles,
		OutputFolder: resp.OutputFolder,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}

	m.mu.Lock()
	if m.cur == sid {
		m.messages = append(m.messages, answer)
	}
	m.errMsg = ""
	m.mu.Unlock()
	m.notifyChange()

	sess, err := m.svc.UpdateSession(ctx, sid, resp.HTMLFiles, resp.OutputFolder, content)
	if err != nil {
		// The turn already succeeded on screen; a failed summary update is
		// recoverable on the next refresh.
		m.logger.Warn("session upsert after answer failed", "session", sid, "error", err)
		return nil
	}
	m.UpdateSession(ctx, &sess)
	return nil
}

// ClearError dismisses the error banner.
func (m *Manager) ClearError() {
	m.mu.Lock()
	m.errMsg = ""
	m.mu.Unlock()
	m.notifyChange()
}

// Close stops the state watcher.
func (m *Manager) Close() error {
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// reconcile swaps an optimistic message's temporary ID for the
// server-confirmed one. If the optimistic entry is gone (a reload replaced
// the list, which already contains the persisted message), there is nothing
// to do.
func (m *Manager) reconcile(sid, tempID string, confirmed backend.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.pending[tempID] {
		return
	}
	delete(m.pending, tempID)
	if m.cur != sid {
		return
	}
	for i := range m.messages {
		if m.messages[i].ID == tempID {
			m.messages[i].ID = confirmed.ID
			if confirmed.Timestamp != "" {
				m.messages[i].Timestamp = confirmed.Timestamp
			}
			return
		}
	}
}

func (m *Manager) setError(msg string) {
	m.mu.Lock()
	m.errMsg = msg
	m.mu.Unlock()
	m.notifyChange()
}

// persistCurrent writes the current-session ID through the state store.
// Storage failures are logged inside the store; the client stays usable
// without persistence.
func (m *Manager) persistCurrent(id string) {
	if m.store == nil {
		return
	}
	_ = state.Set(m.store, state.KeyCurrentSession, id)
}

// watchCurrent adopts current-session changes made by other processes.
// Only a value that actually differs arrives here (the store suppresses
// echoes), so adoption cannot feed back.
func (m *Manager) watchCurrent() {
	if m.store == nil {
		return
	}
	err := m.store.Watch(state.KeyCurrentSession, func(raw json.RawMessage) {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			m.logger.Warn("external session id undecodable", "error", err)
			return
		}

		m.mu.Lock()
		same := m.cur == id
		m.mu.Unlock()
		if same {
			return
		}

		m.logger.Info("adopting session switch from another process", "id", id)
		ctx, cancel := context.WithTimeout(context.Background(), watchReloadTimeout)
		defer cancel()

		m.ResetSelection()

		m.mu.Lock()
		m.cur = id
		if id == "" {
			m.messages = nil
			m.msgGen++
			m.loadingMsgs = false
		}
		m.mu.Unlock()
		m.notifyChange()

		if id != "" {
			m.loadMessages(ctx, id)
		}
	})
	if err != nil {
		m.logger.Warn("watching session state failed", "error", err)
	}
}

func (m *Manager) notifyChange() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// mergeSession replaces the session with a matching ID, or prepends the
// session when it is new.
func mergeSession(sessions []backend.Session, sess backend.Session) []backend.Session {
	for i := range sessions {
		if sessions[i].ID == sess.ID {
			out := make([]backend.Session, len(sessions))
			copy(out, sessions)
			out[i] = sess
			return out
		}
	}
	out := make([]backend.Session, 0, len(sessions)+1)
	out = append(out, sess)
	out = append(out, sessions...)
	return out
}
