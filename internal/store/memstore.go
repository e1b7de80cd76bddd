package store

import (
	"context"
	"fmt"
	"sync"

	"lectern/api/internal/doc"
)

// MemStore is an in-memory Fetcher for tests and single-node development.
// Documents are indexed by both public id and storage key.
type MemStore struct {
	mu   sync.RWMutex
	byID map[string]doc.Doc
}

func NewMemStore(docs ...doc.Doc) *MemStore {
	s := &MemStore{byID: make(map[string]doc.Doc)}
	for _, d := range docs {
		s.Put(d)
	}
	return s
}

func (s *MemStore) Fetch(_ context.Context, id string) (doc.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", id, ErrNotFound)
	}
	return d, nil
}

func (s *MemStore) Put(d doc.Doc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id := d.ID(); id != "" {
		s.byID[id] = d
	}
	if key := d.Key(); key != "" {
		s.byID[key] = d
	}
}

func (s *MemStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.byID[id]; ok {
		delete(s.byID, d.ID())
		delete(s.byID, d.Key())
	}
	delete(s.byID, id)
}
