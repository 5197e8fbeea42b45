package auth

import (
	"context"
	"sync"

	"github.com/MuhammadAbdiel/aora-app/internal/models"
)

// NewInMemorySessionStore returns a SessionStore backed by an in-memory map.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]models.Session)}
}

// InMemorySessionStore implements SessionStore for tests and `serve --memory`.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// Save persists the provided session keyed by its secret.
func (s *InMemorySessionStore) Save(_ context.Context, session models.Session) error {
	s.mu.Lock()
	s.sessions[session.Secret] = session
	s.mu.Unlock()
	return nil
}

// Find retrieves a session by secret.
func (s *InMemorySessionStore) Find(_ context.Context, secret string) (models.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[secret]
	s.mu.RUnlock()
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Delete removes the session associated with the secret.
func (s *InMemorySessionStore) Delete(_ context.Context, secret string) error {
	s.mu.Lock()
	delete(s.sessions, secret)
	s.mu.Unlock()
	return nil
}

// Len reports how many sessions are stored.
func (s *InMemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
