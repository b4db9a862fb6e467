package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemorySource is an in-memory DocumentSource for tests and embedded
// use.
type MemorySource struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewMemorySource creates a source preloaded with the given documents.
func NewMemorySource(docs ...*Document) *MemorySource {
	s := &MemorySource{docs: make(map[string]*Document)}
	for _, doc := range docs {
		s.docs[doc.ID] = doc
	}
	return s
}

var _ DocumentSource = (*MemorySource)(nil)

// Add registers or replaces a document.
func (s *MemorySource) Add(doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
}

// List returns document IDs in sorted order.
func (s *MemorySource) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Load returns a document by ID.
func (s *MemorySource) Load(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s not found", id)
	}
	return doc, nil
}
