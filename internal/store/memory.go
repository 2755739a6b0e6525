package store

import (
	"context"
	"fmt"
	"sync"
)

type memCollection struct {
	order []string
	docs  map[string][]byte
}

// memoryBackend keeps documents in maps guarded by one mutex.
type memoryBackend struct {
	mu   sync.RWMutex
	cols map[kind]*memCollection
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{cols: map[kind]*memCollection{}}
}

func (m *memoryBackend) col(k kind) *memCollection {
	c, ok := m.cols[k]
	if !ok {
		c = &memCollection{docs: map[string][]byte{}}
		m.cols[k] = c
	}
	return c
}

func (m *memoryBackend) list(_ context.Context, k kind) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cols[k]
	if !ok {
		return nil, nil
	}
	out := make([][]byte, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.docs[id])
	}
	return out, nil
}

func (m *memoryBackend) get(_ context.Context, k kind, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.cols[k]; ok {
		if doc, ok := c.docs[id]; ok {
			return doc, nil
		}
	}
	return nil, fmt.Errorf("%s %s: %w", k, id, ErrNotFound)
}

func (m *memoryBackend) insert(_ context.Context, k kind, id string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.col(k)
	if _, exists := c.docs[id]; exists {
		return fmt.Errorf("%s %s already exists", k, id)
	}
	c.order = append(c.order, id)
	c.docs[id] = doc
	return nil
}

func (m *memoryBackend) replace(_ context.Context, k kind, id string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.col(k)
	if _, exists := c.docs[id]; !exists {
		return fmt.Errorf("%s %s: %w", k, id, ErrNotFound)
	}
	c.docs[id] = doc
	return nil
}

func (m *memoryBackend) remove(_ context.Context, k kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.col(k)
	if _, exists := c.docs[id]; !exists {
		return fmt.Errorf("%s %s: %w", k, id, ErrNotFound)
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memoryBackend) close() error { return nil }
