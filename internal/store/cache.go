package store

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sha1n/iconclass-mcp/internal/domain"
)

// Cached is a read-through LRU cache in front of a backend.
// Misses are cached too: the backing stores are immutable while served.
// Cached values are shared between callers and must be treated as read-only.
type Cached struct {
	backend Backend
	records *lru.Cache[string, *domain.StoredRecord]
	keys    *lru.Cache[string, domain.KeySet]
}

var _ Backend = (*Cached)(nil)

// NewCached wraps backend with caches holding up to size records and size key sets.
func NewCached(backend Backend, size int) (*Cached, error) {
	if backend == nil {
		return nil, errors.New("backend cannot be nil")
	}
	records, err := lru.New[string, *domain.StoredRecord](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create record cache: %w", err)
	}
	keys, err := lru.New[string, domain.KeySet](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create key cache: %w", err)
	}
	return &Cached{backend: backend, records: records, keys: keys}, nil
}

// Record returns the record for notation from cache or backend.
func (c *Cached) Record(ctx context.Context, notation string) (*domain.StoredRecord, error) {
	if r, ok := c.records.Get(notation); ok {
		if r == nil {
			return nil, ErrNotFound
		}
		return r, nil
	}

	r, err := c.backend.Record(ctx, notation)
	switch {
	case errors.Is(err, ErrNotFound):
		c.records.Add(notation, nil)
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}

	c.records.Add(notation, r)
	return r, nil
}

// Keys returns the key set for code from cache or backend.
func (c *Cached) Keys(ctx context.Context, code string) (domain.KeySet, error) {
	if ks, ok := c.keys.Get(code); ok {
		if ks == nil {
			return nil, ErrNotFound
		}
		return ks, nil
	}

	ks, err := c.backend.Keys(ctx, code)
	switch {
	case errors.Is(err, ErrNotFound):
		c.keys.Add(code, nil)
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}

	c.keys.Add(code, ks)
	return ks, nil
}

// Purge drops every cached entry.
func (c *Cached) Purge() {
	c.records.Purge()
	c.keys.Purge()
}

// Close closes the backend.
func (c *Cached) Close() error {
	c.Purge()
	return c.backend.Close()
}
