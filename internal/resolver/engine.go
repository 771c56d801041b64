// Package resolver composes stored records and key tables into resolved
// notations and walks the hierarchy below them.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/sha1n/iconclass-mcp/internal/domain"
	"github.com/sha1n/iconclass-mcp/internal/notation"
	"github.com/sha1n/iconclass-mcp/internal/store"
	"golang.org/x/sync/errgroup"
)

// Engine resolves notations against a record store and a key table.
// It holds no state across calls and is safe for concurrent use.
type Engine struct {
	records     store.RecordStore
	keys        store.KeyTable
	metrics     *Metrics
	logger      *slog.Logger
	concurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records resolution outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger used for store inconsistencies.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithConcurrency bounds the number of parallel resolutions in ResolveAll.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewEngine creates an engine over the given stores.
func NewEngine(records store.RecordStore, keys store.KeyTable, opts ...Option) (*Engine, error) {
	if records == nil {
		return nil, errors.New("record store cannot be nil")
	}
	if keys == nil {
		return nil, errors.New("key table cannot be nil")
	}

	e := &Engine{
		records:     records,
		keys:        keys,
		logger:      slog.Default(),
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Resolve returns the composed record for n, or nil when n does not resolve.
// An error is returned only when a store fails.
func (e *Engine) Resolve(ctx context.Context, n string) (*domain.Record, error) {
	start := time.Now()
	rec, named, err := e.resolve(ctx, n)
	e.metrics.observe(rec, named, err, time.Since(start))
	return rec, err
}

// ResolveAll resolves every notation independently, in parallel, and returns
// the results aligned with the input. Unresolved notations are nil.
func (e *Engine) ResolveAll(ctx context.Context, notations []string) ([]*domain.Record, error) {
	results := make([]*domain.Record, len(notations))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, n := range notations {
		g.Go(func() error {
			rec, err := e.Resolve(ctx, n)
			if err != nil {
				return err
			}
			results[i] = rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) resolve(ctx context.Context, n string) (*domain.Record, bool, error) {
	rec, err := e.compose(ctx, n, nil)
	if err != nil {
		return nil, false, err
	}

	named := false
	if rec == nil {
		// named notations are only ever stored in their ellipsis form
		q, ok := notation.FirstQualifier(n)
		if !ok {
			return nil, false, nil
		}
		placeholder := notation.SubstituteQualifier(n, q)
		rec, err = e.compose(ctx, placeholder, &q)
		if err != nil || rec == nil {
			return nil, false, err
		}
		rec.Notation = n
		rec.Children = nameChildren(rec.Children, q)
		named = true
	}

	rec.Path = notation.Decompose(n)
	return rec, named, nil
}

// compose builds the record for a literal notation. When q is set, n is the
// ellipsis form of a named notation and base labels get q substituted in.
func (e *Engine) compose(ctx context.Context, n string, q *notation.Segment) (*domain.Record, error) {
	base, key, ok := notation.SplitKey(n)
	if !ok {
		return nil, nil
	}

	stored, err := e.records.Record(ctx, base)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %q: %w", base, err)
	}

	rec := &domain.Record{
		Notation: base,
		Children: uniqueStrings(stored.Children),
		Refs:     uniqueStrings(stored.Refs),
		Text:     copyText(stored.Text),
		Keywords: copyKeywords(stored.Keywords),
	}
	if q != nil {
		rec.Text = nameText(rec.Text, q.Text)
	}

	if stored.KeyCode == "" {
		if key != "" {
			// a suffix on a notation that takes no keys does not exist
			return nil, nil
		}
		return rec, nil
	}

	keys, err := e.keys.Keys(ctx, stored.KeyCode)
	switch {
	case errors.Is(err, store.ErrNotFound):
		e.logger.WarnContext(ctx, "Record references an unknown key code",
			"notation", base, "key_code", stored.KeyCode)
		if key != "" {
			return nil, nil
		}
		return rec, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read key code %q: %w", stored.KeyCode, err)
	}

	if key == "" {
		rec.Children = appendUnique(rec.Children, keyChildren(base, "", keys)...)
		return rec, nil
	}

	entry, ok := keys[key]
	if !ok {
		return nil, nil
	}
	rec.Notation = notation.WithKey(base, key)
	rec.Text = withKeyText(rec.Text, entry.Text)
	rec.Keywords = mergeKeywords(rec.Keywords, entry.Keywords)
	rec.Children = keyChildren(base, key, keys)
	return rec, nil
}
