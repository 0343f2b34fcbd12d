// Package session implements myMPD's PIN-login session store: sliding
// expiry, size cap, O(n) sweep-on-access (spec §3 "Session entry", §4.8,
// component C10). Grounded on original_source/src/web_server/sessions.c.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

// HTTPSessionsMax caps the number of concurrently valid sessions (spec §3
// "list length ≤ HTTP_SESSIONS_MAX").
const HTTPSessionsMax = 10

// Timeout is how long a session stays valid without being revalidated, and
// how far validation slides the expiry forward (spec §3, §4.8, §8 "Session
// validate slides expiry").
const Timeout = 30 * time.Minute

// ErrNotFound is returned by Remove when the session hash is unknown.
var ErrNotFound = errors.New("session: not found")

type entry struct {
	hash      string
	expiresAt time.Time
}

// Store is a sliding-expiry, size-capped session list. Store is safe for
// concurrent use (spec §5 "protected by its own mutex").
type Store struct {
	mu       sync.Mutex
	sessions []entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// New generates a fresh 20-hex-char session hash, sweeps expired entries,
// appends the new one, and evicts the oldest entry if the list now exceeds
// HTTPSessionsMax (spec §4.8 "new()").
func (s *Store) New() (string, error) {
	hash, err := newHash()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.sweepLocked(now)
	s.sessions = append(s.sessions, entry{hash: hash, expiresAt: now.Add(Timeout)})
	if len(s.sessions) > HTTPSessionsMax {
		s.sessions = s.sessions[1:]
	}
	return hash, nil
}

// Validate sweeps expired entries and, if hash matches a live session,
// extends its expiry by Timeout and returns true (spec §4.8 "validate(h)",
// §8 "Session validate slides expiry").
func (s *Store) Validate(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.sweepLocked(now)
	for i := range s.sessions {
		if s.sessions[i].hash == hash {
			s.sessions[i].expiresAt = now.Add(Timeout)
			return true
		}
	}
	return false
}

// Remove drops hash from the list.
func (s *Store) Remove(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.sessions {
		if e.hash == hash {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Len returns the number of currently stored (not necessarily live)
// sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) sweepLocked(now time.Time) {
	live := s.sessions[:0]
	for _, e := range s.sessions {
		if e.expiresAt.After(now) {
			live = append(live, e)
		}
	}
	s.sessions = live
}

func newHash() (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
