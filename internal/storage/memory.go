package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage keeps objects in process. Used when no bucket is configured
// with the memory database driver, and in tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

func (m *MemoryStorage) PutObject(_ context.Context, objectKey string, _ string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectKey] = append([]byte(nil), body...)
	return nil
}

// GeneratePresignedDownloadURL returns a memory:// pseudo URL for a stored key.
func (m *MemoryStorage) GeneratePresignedDownloadURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[objectKey]; !ok {
		return "", ErrObjectNotFound
	}
	return "memory://" + objectKey, nil
}

// Object returns a stored object's bytes.
func (m *MemoryStorage) Object(objectKey string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[objectKey]
	return b, ok
}

// Len is the number of stored objects.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
