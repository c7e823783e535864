package backend

import (
	"sync"
	"time"
)

// DefaultCacheTTL bounds how long a fetched session list is served without a
// fresh network call. Matches the web client's 5-second window.
const DefaultCacheTTL = 5 * time.Second

// sessionCache is a single-entry read cache for the session list.
//
// The cache is owned by a Service instance, not module scope, and takes its
// notion of "now" from an injectable clock so tests can cross the TTL
// boundary deterministically. Any successful session write invalidates it
// unconditionally.
type sessionCache struct {
	mu         sync.Mutex
	sessions   []Session
	capturedAt time.Time
	ttl        time.Duration
	now        func() time.Time
}

func newSessionCache(ttl time.Duration, now func() time.Time) *sessionCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &sessionCache{ttl: ttl, now: now}
}

// get returns a copy of the cached list while the entry is younger than the
// TTL. The copy keeps callers from mutating cached state.
func (c *sessionCache) get() ([]Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessions == nil || c.now().Sub(c.capturedAt) >= c.ttl {
		return nil, false
	}
	out := make([]Session, len(c.sessions))
	copy(out, c.sessions)
	return out, true
}

func (c *sessionCache) put(sessions []Session) {
	stored := make([]Session, len(sessions))
	copy(stored, sessions)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = stored
	c.capturedAt = c.now()
}

func (c *sessionCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = nil
}
