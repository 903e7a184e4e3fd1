package session

import (
	"sync"
	"time"
)

// Store owns every live session. It guarantees:
//
//   - exactly one session per key at a time
//   - all steps for the same key run serialized (per-key mutex held from
//     Acquire to the returned release function)
//   - a session idle longer than TTL is replaced, never merged, on the
//     next acquire
//
// Different keys proceed fully in parallel. Expiry is lazy; there is no
// background sweeper.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[Key]*entry
	version uint64
}

type entry struct {
	mu   sync.Mutex
	gone bool // set once the entry has been removed from the map
	sess *Session
}

// NewStore builds a Store with the given staleness threshold. The now
// function defaults to time.Now and exists as a test seam.
func NewStore(ttl time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		ttl:     ttl,
		now:     now,
		entries: make(map[Key]*entry),
	}
}

// Acquire returns the live session for key, creating a fresh one if none
// exists or the previous one went stale. The key lock is held until the
// returned release function is called; callers must not retain the session
// past release.
func (s *Store) Acquire(key Key) (*Session, func()) {
	for {
		s.mu.Lock()
		e, ok := s.entries[key]
		if !ok {
			e = &entry{sess: s.newLocked(key)}
			s.entries[key] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if e.gone {
			// Lost a race with Drain; the map entry was replaced.
			e.mu.Unlock()
			continue
		}

		now := s.now()
		if s.ttl > 0 && now.Sub(e.sess.UpdatedAt) > s.ttl {
			s.mu.Lock()
			e.sess = s.newLocked(key)
			s.mu.Unlock()
		}
		return e.sess, e.mu.Unlock
	}
}

// Drain finalizes and removes the session for key, but only when its
// version still matches expect: a cleared or recreated session makes the
// drain a safe no-op. The returned session is completed and no longer
// reachable through the store.
func (s *Store) Drain(key Key, expect uint64) (*Session, bool) {
	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone || e.sess.Version != expect {
		return nil, false
	}

	e.sess.IsCompleted = true
	e.gone = true
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return e.sess, true
}

// Delete removes the session for key unconditionally (used when a
// completed session must be discarded without emitting).
func (s *Store) Delete(key Key) {
	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	if !e.gone {
		e.gone = true
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
	}
	e.mu.Unlock()
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// newLocked allocates a fresh session with the next version. Callers hold s.mu.
func (s *Store) newLocked(key Key) *Session {
	s.version++
	return newSession(key, s.version, s.now())
}
