package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/fansite/contentflow/internal/workflow"
)

// MemoryStore is an in-memory content store used for development and tests.
// Items are deep-copied on the way in and out, so callers never share slices
// or pointers with the stored values.
type MemoryStore[P any] struct {
	mu    sync.RWMutex
	items map[string]workflow.Item[P]
}

func NewMemoryStore[P any]() *MemoryStore[P] {
	return &MemoryStore[P]{items: make(map[string]workflow.Item[P])}
}

func (m *MemoryStore[P]) Create(_ context.Context, item *workflow.Item[P]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; ok {
		return workflow.ErrAlreadyExists
	}
	m.items[item.ID] = *clone(item)
	return nil
}

func (m *MemoryStore[P]) Get(_ context.Context, id string) (*workflow.Item[P], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return nil, workflow.ErrNotFound
	}
	return clone(&it), nil
}

func (m *MemoryStore[P]) UpdateIfVersion(_ context.Context, item *workflow.Item[P], expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[item.ID]
	if !ok {
		return workflow.ErrNotFound
	}
	if cur.Version != expected {
		return workflow.ErrVersionConflict
	}
	m.items[item.ID] = *clone(item)
	return nil
}

func (m *MemoryStore[P]) DeleteIfVersion(_ context.Context, id string, expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[id]
	if !ok {
		return workflow.ErrNotFound
	}
	if cur.Version != expected {
		return workflow.ErrVersionConflict
	}
	delete(m.items, id)
	return nil
}

func (m *MemoryStore[P]) List(_ context.Context, f workflow.Filter) ([]*workflow.Item[P], error) {
	m.mu.RLock()
	out := make([]*workflow.Item[P], 0, len(m.items))
	for _, it := range m.items {
		if f.Matches(&it.Meta) {
			out = append(out, clone(&it))
		}
	}
	m.mu.RUnlock()
	return page(out, f), nil
}

// page sorts newest first and applies offset/limit.
func page[P any](items []*workflow.Item[P], f workflow.Filter) []*workflow.Item[P] {
	sort.Slice(items, func(i, j int) bool {
		if items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	if f.Offset > 0 {
		if f.Offset >= len(items) {
			return []*workflow.Item[P]{}
		}
		items = items[f.Offset:]
	}
	if f.Limit > 0 && len(items) > f.Limit {
		items = items[:f.Limit]
	}
	return items
}
