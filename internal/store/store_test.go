package store

import (
	"context"
	"errors"
	"testing"

	"github.com/sha1n/iconclass-mcp/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() *Dataset {
	ds := NewDataset()
	r := ds.Record("11")
	r.Children = []string{"11H"}
	r.KeyCode = "1"
	r.Text = map[string]string{"en": "Christian religion"}
	e := ds.KeyEntry("1", "1")
	e.Text["en"] = "Holy Trinity"
	return ds
}

func TestDataset_RecordAndKeyEntry(t *testing.T) {
	ds := NewDataset()
	a := ds.Record("11")
	a.Children = append(a.Children, "11H")
	assert.Same(t, a, ds.Record("11"))

	e := ds.KeyEntry("1", "1")
	e.Text["en"] = "Holy Trinity"
	assert.Equal(t, "Holy Trinity", ds.KeyEntry("1", "1").Text["en"])
	assert.Equal(t, []string{"1"}, ds.Keys["1"].Suffixes())
}

func TestDataset_Validate(t *testing.T) {
	ds := sampleDataset()
	require.NoError(t, ds.Validate())

	ds.Records["x"] = &domain.StoredRecord{Notation: "x", Children: []string{""}}
	assert.Error(t, ds.Validate())

	ds = NewDataset()
	ds.Records["y"] = &domain.StoredRecord{Notation: "y", Text: map[string]string{"": "no language"}}
	assert.Error(t, ds.Validate())
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(sampleDataset())

	rec, err := m.Record(ctx, "11")
	require.NoError(t, err)
	assert.Equal(t, "1", rec.KeyCode)

	// returned records are copies
	rec.Children[0] = "mutated"
	rec.Text["en"] = "mutated"
	again, err := m.Record(ctx, "11")
	require.NoError(t, err)
	assert.Equal(t, []string{"11H"}, again.Children)
	assert.Equal(t, "Christian religion", again.Text["en"])

	ks, err := m.Keys(ctx, "1")
	require.NoError(t, err)
	ks["1"].Text["en"] = "mutated"
	ks, err = m.Keys(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Holy Trinity", ks["1"].Text["en"])

	_, err = m.Record(ctx, "99")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Keys(ctx, "9")
	assert.ErrorIs(t, err, ErrNotFound)

	records, keys := m.Len()
	assert.Equal(t, 1, records)
	assert.Equal(t, 1, keys)
	assert.NoError(t, m.Close())
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemory(nil)
	_, err := m.Record(ctx, "11")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = m.Keys(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
}

// countingBackend counts reads that reach the wrapped backend.
type countingBackend struct {
	Backend
	recordCalls int
	keyCalls    int
	err         error
	closed      bool
}

func (c *countingBackend) Record(ctx context.Context, n string) (*domain.StoredRecord, error) {
	c.recordCalls++
	if c.err != nil {
		return nil, c.err
	}
	return c.Backend.Record(ctx, n)
}

func (c *countingBackend) Keys(ctx context.Context, code string) (domain.KeySet, error) {
	c.keyCalls++
	if c.err != nil {
		return nil, c.err
	}
	return c.Backend.Keys(ctx, code)
}

func (c *countingBackend) Close() error {
	c.closed = true
	return nil
}

func TestCached_ReadThrough(t *testing.T) {
	ctx := context.Background()
	backend := &countingBackend{Backend: NewMemory(sampleDataset())}
	c, err := NewCached(backend, 16)
	require.NoError(t, err)

	for range 3 {
		rec, err := c.Record(ctx, "11")
		require.NoError(t, err)
		assert.Equal(t, "11", rec.Notation)

		_, err = c.Record(ctx, "99")
		assert.ErrorIs(t, err, ErrNotFound)

		ks, err := c.Keys(ctx, "1")
		require.NoError(t, err)
		assert.Contains(t, ks, "1")

		_, err = c.Keys(ctx, "9")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, 2, backend.recordCalls)
	assert.Equal(t, 2, backend.keyCalls)

	c.Purge()
	_, err = c.Record(ctx, "11")
	require.NoError(t, err)
	assert.Equal(t, 3, backend.recordCalls)

	require.NoError(t, c.Close())
	assert.True(t, backend.closed)
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	backend := &countingBackend{Backend: NewMemory(sampleDataset()), err: errors.New("unreachable")}
	c, err := NewCached(backend, 16)
	require.NoError(t, err)

	_, err = c.Record(ctx, "11")
	require.Error(t, err)

	backend.err = nil
	_, err = c.Record(ctx, "11")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.recordCalls)
}

func TestNewCached_Validation(t *testing.T) {
	_, err := NewCached(nil, 16)
	assert.Error(t, err)

	_, err = NewCached(NewMemory(nil), 0)
	assert.Error(t, err)
}
