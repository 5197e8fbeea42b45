package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// SessionStore persists the secret of the client's current session between runs.
type SessionStore interface {
	Load() (string, error)
	Save(secret string) error
	Clear() error
}

// MemorySessionStore keeps the secret for the lifetime of the process.
type MemorySessionStore struct {
	mu     sync.Mutex
	secret string
}

// Load returns the stored secret, or "" when signed out.
func (m *MemorySessionStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.secret, nil
}

// Save replaces the stored secret.
func (m *MemorySessionStore) Save(secret string) error {
	m.mu.Lock()
	m.secret = secret
	m.mu.Unlock()
	return nil
}

// Clear forgets the stored secret.
func (m *MemorySessionStore) Clear() error {
	return m.Save("")
}

// FileSessionStore keeps the secret in a file readable only by the current user.
type FileSessionStore struct {
	Path string

	mu sync.Mutex
}

type sessionFile struct {
	Secret string `json:"secret"`
}

// Load returns the stored secret. A missing file means signed out.
func (f *FileSessionStore) Load() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read session file: %w", err)
	}

	var stored sessionFile
	if err := json.Unmarshal(data, &stored); err != nil {
		return "", fmt.Errorf("decode session file: %w", err)
	}
	return stored.Secret, nil
}

// Save writes secret atomically.
func (f *FileSessionStore) Save(secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(sessionFile{Secret: secret})
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// Clear removes the session file.
func (f *FileSessionStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
