package store

import (
	"context"

	"github.com/sha1n/iconclass-mcp/internal/domain"
)

// Memory serves a dataset held entirely in memory.
// It is safe for concurrent use; the dataset must not change after construction.
type Memory struct {
	records map[string]*domain.StoredRecord
	keys    map[string]domain.KeySet
}

// Compile-time contract assertion.
var _ Backend = (*Memory)(nil)

// NewMemory creates a memory store over ds. A nil dataset yields an empty store.
func NewMemory(ds *Dataset) *Memory {
	if ds == nil {
		ds = NewDataset()
	}
	return &Memory{records: ds.Records, keys: ds.Keys}
}

// Record returns a copy of the stored record for notation.
func (m *Memory) Record(ctx context.Context, notation string) (*domain.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := m.records[notation]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

// Keys returns a copy of the key set for code.
func (m *Memory) Keys(ctx context.Context, code string) (domain.KeySet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ks, ok := m.keys[code]
	if !ok {
		return nil, ErrNotFound
	}
	return ks.Clone(), nil
}

// Len returns the number of stored records and key codes.
func (m *Memory) Len() (records, keys int) {
	return len(m.records), len(m.keys)
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
