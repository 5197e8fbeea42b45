package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MuhammadAbdiel/aora-app/internal/models"
)

var (
	// ErrSessionNotFound indicates the provided secret does not map to an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the session outlived its TTL and was discarded.
	ErrSessionExpired = errors.New("session expired")
)

// SessionStore persists issued sessions so they can survive process restarts.
type SessionStore interface {
	Save(ctx context.Context, session models.Session) error
	Find(ctx context.Context, secret string) (models.Session, error)
	Delete(ctx context.Context, secret string) error
}

// Manager manages the lifecycle of account sessions backed by a persistent store.
type Manager struct {
	ttl   time.Duration
	store SessionStore
	now   func() time.Time
}

// NewManager constructs a Manager that issues sessions valid for ttl.
func NewManager(ttl time.Duration, store SessionStore) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	return &Manager{
		ttl:   ttl,
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create issues a new session for the provided account.
func (m *Manager) Create(ctx context.Context, accountID string) (models.Session, error) {
	if accountID == "" {
		return models.Session{}, errors.New("account id must be provided")
	}

	secret, err := randomToken()
	if err != nil {
		return models.Session{}, err
	}

	now := m.now()
	session := models.Session{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Secret:    secret,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, session); err != nil {
		return models.Session{}, err
	}
	return session, nil
}

// Resolve looks up the session identified by secret. Expired sessions are removed.
func (m *Manager) Resolve(ctx context.Context, secret string) (models.Session, error) {
	if secret == "" {
		return models.Session{}, ErrSessionNotFound
	}

	session, err := m.store.Find(ctx, secret)
	if err != nil {
		return models.Session{}, err
	}

	if session.Expired(m.now()) {
		_ = m.store.Delete(ctx, secret)
		return models.Session{}, ErrSessionExpired
	}
	return session, nil
}

// Revoke removes the session identified by secret.
func (m *Manager) Revoke(ctx context.Context, secret string) error {
	if secret == "" {
		return ErrSessionNotFound
	}
	return m.store.Delete(ctx, secret)
}

func randomToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
