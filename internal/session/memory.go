// ABOUTME: In-memory Store used by tests and runs without persistence
// ABOUTME: Copies on load and save so callers never share the map

package session

import (
	"context"
	"sync"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	record Record
	saves  int
}

// NewMemoryStore creates a store holding a copy of initial.
func NewMemoryStore(initial Record) *MemoryStore {
	return &MemoryStore{record: initial.Clone()}
}

func (m *MemoryStore) Load(ctx context.Context) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.record.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = record.Clone()
	m.saves++
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, user string) error {
	return clearWith(ctx, m, user)
}

// Saves reports how many times Save has been called.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
