// Package store defines the vector/keyword index adapter: a narrow,
// uniform read surface over the storage engine, hiding its quirks (and, in
// the reference engine, the concrete hnsw/bleve backends) from the hybrid
// retriever.
package store

import (
	"context"
	"errors"

	"github.com/ragcore/ragcore/internal/document"
)

// ErrBackendFailure wraps any engine error; the adapter never silently
// returns empty in place of a failure.
var ErrBackendFailure = errors.New("store: backend failure")

// ChunkRef identifies a chunk without carrying its text/metadata payload.
type ChunkRef struct {
	ChunkID string
	DocID   string
}

// DocRef identifies a document.
type DocRef struct {
	DocID string
}

// Filter is an equality or set-containment predicate over metadata fields,
// e.g. Filter{Field: "kind", In: []string{"terms","disclosure"}}.
type Filter struct {
	Field string
	Eq    string
	In    []string
}

// Matches reports whether value satisfies the filter.
func (f Filter) Matches(value string) bool {
	if f.Eq != "" {
		return value == f.Eq
	}
	if len(f.In) > 0 {
		for _, v := range f.In {
			if v == value {
				return true
			}
		}
		return false
	}
	return true
}

// Scored pairs a reference with a score, sorted by the adapter per its
// ordering contract (score desc, ties broken by ID asc).
type Scored[T any] struct {
	Ref   T
	Score float64
}

// Resolved is the (text, chunk metadata, document metadata) triple returned
// by Resolve.
type Resolved struct {
	Text  string
	Chunk document.Chunk
	Doc   document.Document
}

// Adapter is the uniform read surface over the storage engine. All
// operations are read-only and must be concurrency-safe, observing a
// single consistent snapshot for the duration of one request.
type Adapter interface {
	KNN(ctx context.Context, queryVector []float64, k int, filter *Filter) ([]Scored[ChunkRef], error)
	BM25Chunk(ctx context.Context, queryText string, k int, filter *Filter) ([]Scored[ChunkRef], error)
	BM25Meta(ctx context.Context, queryText string, k int, filter *Filter) ([]Scored[DocRef], error)
	Resolve(ctx context.Context, ref ChunkRef) (*Resolved, error)
	Count(ctx context.Context) (int, error)
}
