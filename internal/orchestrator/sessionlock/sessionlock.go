// Package sessionlock serializes turns against the same conversation so two
// concurrent requests for one (agent_id, session_id) pair never race on the
// same Conversation row. Grounded on the teacher's per-IP limiter map in
// internal/registry/handler/ratelimit.go: a guarded map keyed by string,
// lazily populated, with stale entries swept periodically.
package sessionlock

import (
	"sync"
	"time"
)

type entry struct {
	mu       sync.Mutex
	lastUsed time.Time
}

// Locker hands out a per-key mutex for the caller to lock around one turn.
// Keys are conversation identities ("agentID:sessionID"); unrelated keys
// never block each other.
type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New starts a Locker with a background sweep that drops entries unused for
// longer than idleTTL, so long-running processes don't accumulate one mutex
// per session forever.
func New(idleTTL time.Duration) *Locker {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	l := &Locker{entries: make(map[string]*entry)}
	go l.sweep(idleTTL)
	return l
}

func (l *Locker) sweep(idleTTL time.Duration) {
	ticker := time.NewTicker(idleTTL)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		for key, e := range l.entries {
			if time.Since(e.lastUsed) > idleTTL {
				delete(l.entries, key)
			}
		}
		l.mu.Unlock()
	}
}

// Key builds the conversation identity string a Locker keys on.
func Key(agentID, sessionID string) string {
	return agentID + ":" + sessionID
}

// Lock blocks until the caller holds the mutex for key, then returns an
// unlock function the caller must call exactly once.
func (l *Locker) Lock(key string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.lastUsed = time.Now()
	l.mu.Unlock()

	e.mu.Lock()
	return e.mu.Unlock
}
