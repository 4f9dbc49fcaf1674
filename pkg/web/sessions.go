package web

import (
	"sync"

	"github.com/appforge/flowcanvas/pkg/editor"
)

// SessionStore holds the open edit sessions of this process, keyed by
// session id.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*editor.Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*editor.Session)}
}

// Put registers a session.
func (s *SessionStore) Put(session *editor.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID()] = session
}

// Get returns the session with the given id.
func (s *SessionStore) Get(id string) (*editor.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]

	return session, ok
}

// Delete removes a session. In-memory edits are discarded.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
}

// Len returns the number of open sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}
