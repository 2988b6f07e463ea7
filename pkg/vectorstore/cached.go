package vectorstore

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds CachedStore when a non-positive size is given.
const DefaultCacheSize = 4096

// CachedStore keeps recently fetched vectors in an LRU cache in front of
// another store. Misses are not cached.
type CachedStore struct {
	inner Store
	cache *lru.Cache[string, []float32]
}

// NewCachedStore wraps inner with an LRU cache holding up to size vectors.
func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedStore{inner: inner, cache: cache}, nil
}

// GetEmbedding implements Store.
func (c *CachedStore) GetEmbedding(ctx context.Context, documentID string) ([]float32, error) {
	if vec, ok := c.cache.Get(documentID); ok {
		return vec, nil
	}
	vec, err := c.inner.GetEmbedding(ctx, documentID)
	if err != nil {
		return nil, err
	}
	c.cache.Add(documentID, vec)
	return vec, nil
}

// ScanEmbeddings implements Store and warms the cache with the results.
func (c *CachedStore) ScanEmbeddings(ctx context.Context, filter Filter) ([]Embedding, error) {
	out, err := c.inner.ScanEmbeddings(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, e := range out {
		c.cache.Add(e.DocumentID, e.Vector)
	}
	return out, nil
}

// PutEmbedding writes through to the inner store when it accepts writes.
func (c *CachedStore) PutEmbedding(ctx context.Context, e Embedding) error {
	w, ok := c.inner.(Writer)
	if !ok {
		return fmt.Errorf("%T does not accept writes", c.inner)
	}
	if err := w.PutEmbedding(ctx, e); err != nil {
		return err
	}
	c.cache.Add(e.DocumentID, e.Vector)
	return nil
}

// Len returns the number of cached vectors.
func (c *CachedStore) Len() int {
	return c.cache.Len()
}

// Close implements Store.
func (c *CachedStore) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
