// Package session holds the mutable, in-memory aggregation state building
// toward one order: one session per (conversation, participant) key. The
// Store serializes all work on a key behind a per-key lock, applies
// timeout-based expiry lazily, and versions sessions so delayed jobs can
// detect that the session they targeted has been cleared or recreated.
package session

import (
	"sort"
	"time"

	"github.com/tbourn/go-order-backend/internal/domain"
)

// Key identifies one aggregation session.
type Key struct {
	ChatID int64
	UserID int64
}

// Session accumulates messages from one participant in one conversation.
// All mutation happens while the owning Store key lock is held.
type Session struct {
	Key     Key
	Version uint64

	// RawMessages preserves insertion order; the full history feeds the
	// product/comment partition at drain time.
	RawMessages []string
	Phones      map[string]struct{}
	Location    *domain.Location
	IsCompleted bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func newSession(key Key, version uint64, now time.Time) *Session {
	return &Session{
		Key:       key,
		Version:   version,
		Phones:    make(map[string]struct{}),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append records one raw message text.
func (s *Session) Append(text string) {
	if text != "" {
		s.RawMessages = append(s.RawMessages, text)
	}
}

// AddPhones unions normalized phones into the session and reports whether
// the session gained its first phone as a result.
func (s *Session) AddPhones(phones []string) (firstPhones bool) {
	hadBefore := len(s.Phones) > 0
	for _, p := range phones {
		s.Phones[p] = struct{}{}
	}
	return len(s.Phones) > 0 && !hadBefore
}

// SetLocation applies first-wins location assignment and reports whether
// this call supplied the session's first location.
func (s *Session) SetLocation(loc *domain.Location) (firstLocation bool) {
	if loc == nil || s.Location != nil {
		return false
	}
	s.Location = loc
	return true
}

// Ready reports whether the session qualifies for finalization: at least
// one phone and a location. Readiness is recomputed, never stored.
func (s *Session) Ready() bool {
	return len(s.Phones) > 0 && s.Location != nil
}

// Touch refreshes the staleness clock.
func (s *Session) Touch(now time.Time) { s.UpdatedAt = now }

// PhoneList returns the accumulated phones, sorted for determinism.
func (s *Session) PhoneList() []string {
	out := make([]string, 0, len(s.Phones))
	for p := range s.Phones {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
