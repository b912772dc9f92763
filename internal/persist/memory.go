package persist

import (
	"context"
	"sync"
)

// Compile-time check that Memory implements Backend.
var _ Backend = (*Memory)(nil)

// Memory is an in-memory Backend. It copies on every read and write.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]Item
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string][]Item)}
}

// GetAll implements Backend.
func (m *Memory) GetAll(ctx context.Context, collection string) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("get", collection, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return CloneItems(m.collections[collection]), nil
}

// ReplaceAll implements Backend.
func (m *Memory) ReplaceAll(ctx context.Context, collection string, items []Item) error {
	if err := ctx.Err(); err != nil {
		return wrap("replace", collection, err)
	}

	cp := CloneItems(items)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.collections[collection] = cp

	return nil
}

// Upsert implements Backend.
func (m *Memory) Upsert(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return wrap("upsert", collection, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.collections[collection] = merge(m.collections[collection], id, fields)

	return nil
}
