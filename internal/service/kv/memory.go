package kv

import (
	"context"
	"sync"
)

type (
	// MemoryStore keeps values in-process. Used by tests and by the demo
	// client when no redis is configured.
	MemoryStore struct {
		mu     sync.Mutex
		values map[string]string
	}
)

func NewMemory() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
