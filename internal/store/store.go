// Package store defines the record store and key table consumed by the
// resolver, together with the in-memory and cached implementations.
// Persistent backends live in the sqlstore and kvstore subpackages.
package store

import (
	"context"
	"errors"

	"github.com/sha1n/iconclass-mcp/internal/domain"
)

// ErrNotFound is returned when a notation or key code is not stored.
var ErrNotFound = errors.New("not found")

// RecordStore returns stored base records by notation.
type RecordStore interface {
	Record(ctx context.Context, notation string) (*domain.StoredRecord, error)
}

// KeyTable returns every suffix entry of a key code.
type KeyTable interface {
	Keys(ctx context.Context, code string) (domain.KeySet, error)
}

// Backend is a store serving both records and keys.
type Backend interface {
	RecordStore
	KeyTable
	Close() error
}

// Importer replaces the content of a persistent backend with a dataset.
type Importer interface {
	Import(ctx context.Context, ds *Dataset) error
}

// Dataset is the decoded content of a data source, ready to be imported.
type Dataset struct {
	Records map[string]*domain.StoredRecord
	Keys    map[string]domain.KeySet
}

// NewDataset creates an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{
		Records: make(map[string]*domain.StoredRecord),
		Keys:    make(map[string]domain.KeySet),
	}
}

// Record returns the record for notation, creating an empty one if needed.
func (d *Dataset) Record(notation string) *domain.StoredRecord {
	r, ok := d.Records[notation]
	if !ok {
		r = &domain.StoredRecord{Notation: notation}
		d.Records[notation] = r
	}
	return r
}

// KeyEntry returns the entry for (code, suffix), creating it if needed.
func (d *Dataset) KeyEntry(code, suffix string) domain.KeyEntry {
	ks, ok := d.Keys[code]
	if !ok {
		ks = make(domain.KeySet)
		d.Keys[code] = ks
	}
	e, ok := ks[suffix]
	if !ok {
		e = domain.KeyEntry{Text: map[string]string{}, Keywords: map[string][]string{}}
		ks[suffix] = e
	}
	return e
}

// Validate checks every record of the dataset.
func (d *Dataset) Validate() error {
	for _, r := range d.Records {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}
