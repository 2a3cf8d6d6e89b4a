package marketplace

import (
	"sync"

	"gigradar/services/gigradar/internal/credentials"
)

// Session holds the live credential bundle. Readers take a copy; only the
// refresher replaces it, bumping the version so concurrent callers can tell
// a refresh already happened.
type Session struct {
	mu      sync.RWMutex
	bundle  credentials.Bundle
	version uint64
}

func NewSession(b credentials.Bundle) *Session {
	return &Session{bundle: b.Clone()}
}

func (s *Session) Snapshot() (credentials.Bundle, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle.Clone(), s.version
}

func (s *Session) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Session) Replace(b credentials.Bundle) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundle = b.Clone()
	s.version++
	return s.version
}
