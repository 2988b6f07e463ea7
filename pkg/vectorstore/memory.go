package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps embeddings in a map. It is safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	embeddings map[string]Embedding
}

// NewMemoryStore creates a store seeded with embeddings.
func NewMemoryStore(embeddings ...Embedding) *MemoryStore {
	s := &MemoryStore{embeddings: make(map[string]Embedding, len(embeddings))}
	for _, e := range embeddings {
		s.embeddings[e.DocumentID] = copyEmbedding(e)
	}
	return s
}

// GetEmbedding implements Store.
func (s *MemoryStore) GetEmbedding(ctx context.Context, documentID string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.embeddings[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}
	return append([]float32(nil), e.Vector...), nil
}

// ScanEmbeddings implements Store.
func (s *MemoryStore) ScanEmbeddings(ctx context.Context, filter Filter) ([]Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := filter.idSet()
	var out []Embedding
	for _, e := range s.embeddings {
		if filter.matches(e, ids) {
			out = append(out, copyEmbedding(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// PutEmbedding implements Writer.
func (s *MemoryStore) PutEmbedding(ctx context.Context, e Embedding) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(e.Vector) == 0 {
		return ErrEmptyVector
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[e.DocumentID] = copyEmbedding(e)
	return nil
}

// Len returns the number of stored embeddings.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.embeddings)
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func copyEmbedding(e Embedding) Embedding {
	e.Vector = append([]float32(nil), e.Vector...)
	return e
}
