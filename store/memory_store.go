package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory implementation of Store. It's the default
// provider of "memory://" URLs and is also used throughout tests.
type MemoryStore struct {
	Content map[string][]byte
	mu      sync.RWMutex
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Content: make(map[string][]byte)}
}

func (m *MemoryStore) Provider() string { return "memory" }

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var value, ok = m.Content[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, value...), true, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte, _ Durability) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Content[key] = append([]byte{}, value...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string, _ Durability) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Content, key)
	return nil
}

func (m *MemoryStore) Write(_ context.Context, b *Batch, _ Durability) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range b.Ops {
		if op.Delete {
			delete(m.Content, op.Key)
		} else {
			m.Content[op.Key] = append([]byte{}, op.Value...)
		}
	}
	return nil
}

func (m *MemoryStore) Flush(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// Keys returns the sorted keys of the MemoryStore having |prefix|.
func (m *MemoryStore) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for key := range m.Content {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
