// Package state persists small pieces of client state between runs.
//
// Responsibilities: durable storage of the current session ID (and any other
// key the client wants to survive a restart) plus change notification so that
// several spready processes on the same machine converge on the same current
// session.
//
// Values are JSON-encoded into a single state file under the client's state
// directory (~/.spready by default). Writes are guarded by a cross-process
// file lock and performed atomically (temp file + rename). A store opened
// against an unusable directory degrades to memory-only operation: reads and
// writes keep working for the lifetime of the process, nothing is persisted,
// and the failure is logged once. The client must stay usable without
// persistent storage.
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/neurofinance/spready/internal/log"
)

const (
	stateFile = "state.json"
	lockFile  = "state.lock"
)

// KeyCurrentSession is the canonical key for the persisted current-session
// ID. The value is a JSON-encoded string, matching what the web client
// stores under the same name.
const KeyCurrentSession = "currentSessionId"

// Store is a typed key-value store backed by a JSON state file.
//
// Store is safe for concurrent use by multiple goroutines. Use Get and Set
// (package-level generic helpers) for typed access.
type Store struct {
	logger log.Logger

	mu     sync.Mutex
	values map[string]json.RawMessage

	// path is empty when the store is memory-only.
	path string
	lock *flock.Flock

	watch *watchState
}

// Open opens (or creates) a store rooted at dir.
//
// Open never fails: if the directory cannot be created or the existing state
// file cannot be parsed, the store degrades to memory-only (or empty) state
// and logs the reason. Callers should treat the returned store as always
// usable.
func Open(dir string, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Store{
		logger: logger,
		values: make(map[string]json.RawMessage),
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		logger.Warn("state directory unavailable, running memory-only", "dir", dir, "error", err)
		return s
	}

	s.path = filepath.Join(dir, stateFile)
	s.lock = flock.New(filepath.Join(dir, lockFile))

	if err := s.loadLocked(); err != nil {
		// A corrupt state file means "no stored values", not a fatal error.
		logger.Warn("state file unreadable, starting empty", "path", s.path, "error", err)
	}
	return s
}

// Close releases the file watcher, if any. The store remains readable.
func (s *Store) Close() error {
	s.mu.Lock()
	w := s.watch
	s.watch = nil
	s.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.stop()
}

// Path returns the state file path, or "" when the store is memory-only.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value stored under key, or initial when the key is absent
// or the stored value cannot be decoded into T. Decode failures are logged
// and treated as "no stored value"; Get never fails.
func Get[T any](s *Store, key string, initial T) T {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()

	if !ok {
		return initial
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.Warn("stored value undecodable, using initial", "key", key, "error", err)
		return initial
	}
	return v
}

// Set stores value under key and persists the state file.
//
// The in-memory value is always updated, so a failed disk write still leaves
// the process self-consistent. Persistence errors are logged and returned;
// most callers deliberately ignore them.
func Set[T any](s *Store, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode state value %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.values[key]; ok && bytes.Equal(old, raw) {
		return nil
	}
	s.values[key] = raw

	if s.path == "" {
		return nil
	}
	if err := s.persistLocked(); err != nil {
		s.logger.Warn("state write failed", "key", key, "error", err)
		return err
	}
	return nil
}

// loadLocked reads the state file into memory. Caller context: init only,
// before any concurrent access.
func (s *Store) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read state file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("decode state file: %w", err)
	}
	s.values = values
	return nil
}

// persistLocked writes the current values atomically under the file lock.
// Caller must hold s.mu.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock state file: %w", err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("unlock state file", "error", err)
		}
	}()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
