package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/neurofinance/spready/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSetAndGet(t *testing.T) {
	s := Open(t.TempDir(), log.NewNop())
	defer s.Close()

	if err := Set(s, KeyCurrentSession, "abc-123"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got := Get(s, KeyCurrentSession, "")
	if got != "abc-123" {
		t.Errorf("Get() = %q, want %q", got, "abc-123")
	}
}

func TestGet_MissingKeyReturnsInitial(t *testing.T) {
	s := Open(t.TempDir(), log.NewNop())
	defer s.Close()

	if got := Get(s, "nope", "fallback"); got != "fallback" {
		t.Errorf("Get() = %q, want initial %q", got, "fallback")
	}
}

func TestGet_UndecodableValueReturnsInitial(t *testing.T) {
	s := Open(t.TempDir(), log.NewNop())
	defer s.Close()

	if err := Set(s, "count", "not a number"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Stored as a JSON string; decoding into int must fail soft.
	if got := Get(s, "count", 42); got != 42 {
		t.Errorf("Get() = %d, want initial 42", got)
	}
}

func TestOpen_SurvivesCorruptStateFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, stateFile), []byte("{nonsense"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := Open(dir, log.NewNop())
	defer s.Close()

	if got := Get(s, KeyCurrentSession, ""); got != "" {
		t.Errorf("Get() = %q, want empty after corrupt file", got)
	}

	// Store must remain writable.
	if err := Set(s, KeyCurrentSession, "s1"); err != nil {
		t.Errorf("Set() after corrupt file error = %v", err)
	}
}

func TestOpen_UnusableDirDegradesToMemory(t *testing.T) {
	// A file where the directory should be makes MkdirAll fail.
	dir := t.TempDir()
	blocked := filepath.Join(dir, "occupied")
	if err := os.WriteFile(blocked, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	s := Open(blocked, log.NewNop())
	defer s.Close()

	if s.Path() != "" {
		t.Errorf("Path() = %q, want empty for memory-only store", s.Path())
	}

	// Memory-only store still round-trips values.
	if err := Set(s, "k", "v"); err != nil {
		t.Fatalf("Set() on memory-only store error = %v", err)
	}
	if got := Get(s, "k", ""); got != "v" {
		t.Errorf("Get() = %q, want %q", got, "v")
	}
}

func TestSet_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s := Open(dir, log.NewNop())
	if err := Set(s, KeyCurrentSession, "persisted"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	s.Close()

	reopened := Open(dir, log.NewNop())
	defer reopened.Close()

	if got := Get(reopened, KeyCurrentSession, ""); got != "persisted" {
		t.Errorf("Get() after reopen = %q, want %q", got, "persisted")
	}
}

func TestWatch_ExternalChangeNotifies(t *testing.T) {
	dir := t.TempDir()

	s := Open(dir, log.NewNop())
	defer s.Close()
	if err := Set(s, KeyCurrentSession, "old"); err != nil {
		t.Fatal(err)
	}

	changed := make(chan string, 1)
	err := s.Watch(KeyCurrentSession, func(raw json.RawMessage) {
		var v string
		if err := json.Unmarshal(raw, &v); err == nil {
			changed <- v
		}
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// A second store in the same directory plays the role of another process.
	other := Open(dir, log.NewNop())
	defer other.Close()
	if err := Set(other, KeyCurrentSession, "new"); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		if got != "new" {
			t.Errorf("watch callback got %q, want %q", got, "new")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for external change notification")
	}
}

func TestWatch_OwnWriteDoesNotNotify(t *testing.T) {
	dir := t.TempDir()

	s := Open(dir, log.NewNop())
	defer s.Close()

	changed := make(chan string, 1)
	err := s.Watch(KeyCurrentSession, func(raw json.RawMessage) {
		changed <- string(raw)
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := Set(s, KeyCurrentSession, "self"); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		t.Errorf("own write fired watch callback with %q", got)
	case <-time.After(300 * time.Millisecond):
		// Silence is the expected outcome.
	}
}

func TestWatch_MemoryOnlyIsNoop(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "occupied")
	if err := os.WriteFile(blocked, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	s := Open(blocked, log.NewNop())
	defer s.Close()

	if err := s.Watch(KeyCurrentSession, func(json.RawMessage) {}); err != nil {
		t.Errorf("Watch() on memory-only store error = %v, want nil", err)
	}
}
