package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// watchState owns the fsnotify watcher and the registered key callbacks.
type watchState struct {
	watcher   *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup
	callbacks map[string][]func(json.RawMessage)
}

// Watch registers fn to be invoked when another process changes the value
// stored under key. fn receives the new raw JSON value. Removal of a key is
// ignored: the last known value stands until something writes a new one.
//
// Only external changes fire: writes made through this store update the
// in-memory copy first, so the reload sees no difference and stays silent.
// This is the guard against feedback loops between processes that watch and
// write the same key.
//
// Watch is a no-op on a memory-only store (there is no file to observe).
func (s *Store) Watch(key string, fn func(json.RawMessage)) error {
	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watch == nil {
		w, err := s.startWatchLocked()
		if err != nil {
			return err
		}
		s.watch = w
	}
	s.watch.callbacks[key] = append(s.watch.callbacks[key], fn)
	return nil
}

// startWatchLocked creates the fsnotify watcher and starts the event loop.
// The directory is watched rather than the file: atomic rename replaces the
// inode, which would silently detach a file-level watch.
func (s *Store) startWatchLocked() (*watchState, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create state watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch state directory: %w", err)
	}

	w := &watchState{
		watcher:   watcher,
		done:      make(chan struct{}),
		callbacks: make(map[string][]func(json.RawMessage)),
	}

	w.wg.Add(1)
	go s.watchLoop(w)
	return w, nil
}

func (w *watchState) stop() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (s *Store) watchLoop(w *watchState) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != stateFile {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			s.reloadAndNotify(w)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("state watcher error", "error", err)
		}
	}
}

// reloadAndNotify re-reads the state file and fires callbacks for keys whose
// observed value differs from the current in-memory one. Callbacks run
// outside the store lock.
func (s *Store) reloadAndNotify(w *watchState) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("state reload failed", "error", err)
		}
		return
	}

	var fresh map[string]json.RawMessage
	if err := json.Unmarshal(data, &fresh); err != nil {
		s.logger.Warn("state reload undecodable, ignoring external write", "error", err)
		return
	}

	type notification struct {
		fn  func(json.RawMessage)
		raw json.RawMessage
	}
	var pending []notification

	s.mu.Lock()
	for key, fns := range w.callbacks {
		raw, ok := fresh[key]
		if !ok {
			raw = json.RawMessage("null")
		}
		if cur, ok := s.values[key]; ok && bytes.Equal(cur, raw) {
			continue
		}
		if !ok && string(raw) == "null" {
			continue
		}
		s.values[key] = raw
		for _, fn := range fns {
			pending = append(pending, notification{fn: fn, raw: raw})
		}
	}
	// Adopt the rest of the external snapshot for keys nobody watches, so a
	// later Get sees the freshest value.
	for key, raw := range fresh {
		if _, watched := w.callbacks[key]; !watched {
			s.values[key] = raw
		}
	}
	s.mu.Unlock()

	for _, n := range pending {
		n.fn(n.raw)
	}
}
