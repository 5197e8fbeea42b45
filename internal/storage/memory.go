// Package storage holds uploaded file contents.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrObjectNotFound indicates no object is stored under the requested key.
var ErrObjectNotFound = errors.New("object not found")

type object struct {
	contentType string
	data        []byte
}

// MemoryStorage keeps objects in memory for tests and `serve --memory`.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]object
}

// NewMemoryStorage returns an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]object)}
}

// Put stores the contents of r under key.
func (m *MemoryStorage) Put(_ context.Context, key, contentType string, r io.Reader, _ int64) error {
	if key == "" {
		return fmt.Errorf("memory storage: empty key")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("memory storage read %s: %w", key, err)
	}

	m.mu.Lock()
	m.objects[key] = object{contentType: contentType, data: data}
	m.mu.Unlock()
	return nil
}

// Get opens the object stored under key.
func (m *MemoryStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete removes the object stored under key.
func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored objects.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
