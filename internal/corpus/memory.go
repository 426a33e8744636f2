// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package corpus

import (
	"context"
	"fmt"
	"sync"
	"time"
)

func init() {
	RegisterBackend("memory", func(Config) (Store, error) {
		return NewMemoryStore(), nil
	})
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory corpus store. Reads take the read lock;
// writes serialize on the write lock, so item replacement is atomic from
// any concurrent reader's perspective.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Item
}

// NewMemoryStore creates an empty in-memory corpus store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]*Item{}}
}

func (m *MemoryStore) Put(_ context.Context, item *Item) error {
	if item == nil {
		return fmt.Errorf("%w: item must not be nil", ErrInvalidInput)
	}
	if err := item.Validate(); err != nil {
		return err
	}

	cp := item.Clone()
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.items[cp.ID]; ok {
		cp.CreatedAt = prev.CreatedAt
	}
	m.items[cp.ID] = cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return item.Clone(), nil
}

func (m *MemoryStore) GetBatch(_ context.Context, ids []string) (map[string]*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := make(map[string]*Item, len(ids))
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			found[id] = item.Clone()
		}
	}
	return found, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	delete(m.items, id)
	return nil
}

func (m *MemoryStore) ForEach(ctx context.Context, fn func(*Item) error) error {
	// Snapshot under the read lock so fn can call back into the store.
	m.mu.RLock()
	snapshot := make([]*Item, 0, len(m.items))
	for _, item := range m.items {
		snapshot = append(snapshot, item.Clone())
	}
	m.mu.RUnlock()

	for _, item := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.items)), nil
}

func (m *MemoryStore) Close() error { return nil }
