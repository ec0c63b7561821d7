package store

import (
	"sync"

	"github.com/google/uuid"
)

// MemorySessionStore is the in-process test double for SessionStore.
// It never expires records.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]string // sid -> user ID
}

// NewMemorySessionStore initializes an empty session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]string)}
}

// NewSession records a sid -> userID mapping.
func (s *MemorySessionStore) NewSession(userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sid := uuid.NewString()
	s.sessions[sid] = userID
	return sid, nil
}

// GetUserIDBySession resolves a sid to the user ID it was issued for.
func (s *MemorySessionStore) GetUserIDBySession(sid string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.sessions[sid]
	return userID, ok, nil
}

// DeleteSession removes a sid record.
func (s *MemorySessionStore) DeleteSession(sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
	return nil
}
