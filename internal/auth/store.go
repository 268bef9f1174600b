package auth

import (
	"sync"
	"time"
)

// SessionStore holds the current sign-in session for the life of the process.
// Safe for concurrent use.
type SessionStore struct {
	mu      sync.RWMutex
	session *Session
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore { return &SessionStore{} }

// Get returns a copy of the current session if it is valid at now.
func (s *SessionStore) Get(now time.Time) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.session.Valid(now) {
		return nil, false
	}
	cp := *s.session
	return &cp, true
}

// Set replaces the current session.
func (s *SessionStore) Set(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session == nil {
		s.session = nil
		return
	}
	cp := *session
	s.session = &cp
}

// Clear drops the current session and returns what was stored.
func (s *SessionStore) Clear() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.session
	s.session = nil
	return old
}
