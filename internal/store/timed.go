package store

import (
	"context"
	"time"
)

// Timed bounds every adapter read with the configured storage read timeout
// (default 10s), so a wedged engine surfaces as a deadline instead of
// holding a request worker indefinitely.
type Timed struct {
	inner   Adapter
	timeout time.Duration
}

// NewTimed wraps inner so each read carries its own deadline.
func NewTimed(inner Adapter, timeout time.Duration) *Timed {
	return &Timed{inner: inner, timeout: timeout}
}

func (t *Timed) KNN(ctx context.Context, queryVector []float64, k int, filter *Filter) ([]Scored[ChunkRef], error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.KNN(ctx, queryVector, k, filter)
}

func (t *Timed) BM25Chunk(ctx context.Context, queryText string, k int, filter *Filter) ([]Scored[ChunkRef], error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.BM25Chunk(ctx, queryText, k, filter)
}

func (t *Timed) BM25Meta(ctx context.Context, queryText string, k int, filter *Filter) ([]Scored[DocRef], error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.BM25Meta(ctx, queryText, k, filter)
}

func (t *Timed) Resolve(ctx context.Context, ref ChunkRef) (*Resolved, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Resolve(ctx, ref)
}

func (t *Timed) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Count(ctx)
}

var _ Adapter = (*Timed)(nil)
