package resolver

import (
	"context"
	"iter"

	"github.com/sha1n/iconclass-mcp/internal/domain"
)

// Resolver resolves a single notation; nil means the notation does not resolve.
type Resolver interface {
	Resolve(ctx context.Context, n string) (*domain.Record, error)
}

// Walker traverses the hierarchy below a notation.
type Walker struct {
	resolver Resolver
}

// NewWalker creates a walker resolving through r.
func NewWalker(r Resolver) *Walker {
	return &Walker{resolver: r}
}

// Descendants yields the record for n followed by all of its descendants,
// depth-first in pre-order. Children are only resolved when the consumer
// pulls that far, and every range over the sequence starts a fresh walk.
//
// A store failure or context cancellation is yielded once as an error and
// ends the sequence. An unresolvable child is skipped with its subtree.
func (w *Walker) Descendants(ctx context.Context, n string) iter.Seq2[*domain.Record, error] {
	return func(yield func(*domain.Record, error) bool) {
		stack := []string{n}
		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			rec, err := w.resolver.Resolve(ctx, top)
			if err != nil {
				yield(nil, err)
				return
			}
			if rec == nil {
				continue
			}
			if !yield(rec, nil) {
				return
			}

			for i := len(rec.Children) - 1; i >= 0; i-- {
				child := rec.Children[i]
				// descent strictly lengthens the notation; anything else would cycle
				if len(child) <= len(rec.Notation) {
					continue
				}
				stack = append(stack, child)
			}
		}
	}
}

// Collect walks below n and returns at most limit records; limit <= 0 means no limit.
// truncated reports whether the walk stopped at the limit.
func (w *Walker) Collect(ctx context.Context, n string, limit int) (records []*domain.Record, truncated bool, err error) {
	for rec, err := range w.Descendants(ctx, n) {
		if err != nil {
			return records, false, err
		}
		if limit > 0 && len(records) == limit {
			return records, true, nil
		}
		records = append(records, rec)
	}
	return records, false, nil
}
