package store

import (
	"context"
	"sync"

	"github.com/studlancer/studlancer/internal/schema"
)

// MemoryStore is an in-memory Store for tests and ephemeral sessions.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]*schema.Document
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*schema.Document)}
}

// Get implements Store.Get.
func (m *MemoryStore) Get(ctx context.Context, id string) (*schema.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Clone(), nil
}

// Put implements Store.Put.
func (m *MemoryStore) Put(ctx context.Context, doc *schema.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[doc.ID] = doc.Clone()
	return nil
}

// Update implements Store.Update.
func (m *MemoryStore) Update(ctx context.Context, id string, mutate func(*schema.Document) error) (*schema.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := doc.Clone()
	if err := mutate(cp); err != nil {
		return nil, err
	}
	m.docs[id] = cp
	return cp.Clone(), nil
}

// Delete implements Store.Delete.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, id)
	return nil
}

// Close implements Store.Close.
func (m *MemoryStore) Close() error { return nil }
