package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ragcore/ragcore/internal/document"
	"github.com/ragcore/ragcore/internal/store"
)

// Engine is the in-process reference storage engine implementing
// store.Adapter: one hnsw graph (dense KNN over chunk embeddings), two bleve
// indices (lexical search over chunk text, and over document metadata), and
// a keyed map holding the resolvable payloads.
type Engine struct {
	knn     *knnIndex
	chunkBM *bm25Index
	metaBM  *bm25Index

	mu     sync.RWMutex
	chunks map[string]document.Chunk
	docs   map[string]persistedDocument
}

// persistedDocument is the scalar-typed record shape the persisted-state
// layout prescribes: list fields (categories, product entities) are
// JSON-encoded strings rather than native slices, even though this
// in-process engine could otherwise hold a native []string directly.
type persistedDocument struct {
	doc            document.Document
	categoriesJSON string
	productsJSON   string
}

func toPersisted(doc document.Document) persistedDocument {
	p := persistedDocument{
		doc:            doc,
		categoriesJSON: document.EncodeList(doc.Categories),
		productsJSON:   document.EncodeList(doc.ProductEntities),
	}
	p.doc.Categories = nil
	p.doc.ProductEntities = nil
	return p
}

// fromPersisted reverses toPersisted, restoring the JSON-encoded list
// fields to slices before the document leaves the engine; callers never
// see the encoded form.
func fromPersisted(p persistedDocument) document.Document {
	doc := p.doc
	doc.Categories = document.DecodeList(p.categoriesJSON)
	doc.ProductEntities = document.DecodeList(p.productsJSON)
	return doc
}

// New constructs an empty Engine.
func New() (*Engine, error) {
	chunkBM, err := newBM25Index("content")
	if err != nil {
		return nil, err
	}
	metaBM, err := newBM25Index("content")
	if err != nil {
		return nil, err
	}
	return &Engine{
		knn:     newKNNIndex(),
		chunkBM: chunkBM,
		metaBM:  metaBM,
		chunks:  make(map[string]document.Chunk),
		docs:    make(map[string]persistedDocument),
	}, nil
}

// IndexDocument registers doc's metadata for bm25_meta search. List fields
// are JSON-encoded before storage.
func (e *Engine) IndexDocument(doc document.Document) error {
	e.mu.Lock()
	e.docs[doc.ID] = toPersisted(doc)
	e.mu.Unlock()

	// bm25_meta searches the concatenation of title, categories, product
	// entities, and doc kind.
	metaText := strings.Join([]string{
		doc.Title,
		strings.Join(doc.Categories, " "),
		strings.Join(doc.ProductEntities, " "),
		string(doc.Kind),
	}, " ")
	if err := e.metaBM.Upsert(doc.ID, metaText); err != nil {
		return fmt.Errorf("memstore: index document metadata: %w", err)
	}
	return nil
}

// IndexChunk registers chunk's text and embedding for bm25_chunk and KNN
// search, keyed under its parent document ID for metadata joins.
func (e *Engine) IndexChunk(chunk document.Chunk, embedding []float64) error {
	e.mu.Lock()
	e.chunks[chunk.ID] = chunk
	e.mu.Unlock()

	if err := e.chunkBM.Upsert(chunk.ID, chunk.Text); err != nil {
		return fmt.Errorf("memstore: index chunk text: %w", err)
	}
	if len(embedding) > 0 {
		e.knn.Upsert(chunk.ID, embedding)
	}
	return nil
}

func (e *Engine) KNN(ctx context.Context, queryVector []float64, k int, filter *store.Filter) ([]store.Scored[store.ChunkRef], error) {
	hits, err := e.knn.Search(ctx, queryVector, clampK(k, filter))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBackendFailure, err)
	}
	out := make([]store.Scored[store.ChunkRef], 0, len(hits))
	for _, h := range hits {
		ref, ok := e.chunkRefIfMatches(h.ID, filter)
		if !ok {
			continue
		}
		out = append(out, store.Scored[store.ChunkRef]{Ref: ref, Score: h.Score})
	}
	return truncateAndSort(out, k), nil
}

func (e *Engine) BM25Chunk(ctx context.Context, queryText string, k int, filter *store.Filter) ([]store.Scored[store.ChunkRef], error) {
	hits, err := e.chunkBM.Search(ctx, queryText, clampK(k, filter))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBackendFailure, err)
	}
	out := make([]store.Scored[store.ChunkRef], 0, len(hits))
	for _, h := range hits {
		ref, ok := e.chunkRefIfMatches(h.ID, filter)
		if !ok {
			continue
		}
		out = append(out, store.Scored[store.ChunkRef]{Ref: ref, Score: h.Score})
	}
	return truncateAndSort(out, k), nil
}

func (e *Engine) BM25Meta(ctx context.Context, queryText string, k int, filter *store.Filter) ([]store.Scored[store.DocRef], error) {
	hits, err := e.metaBM.Search(ctx, queryText, clampK(k, filter))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBackendFailure, err)
	}
	out := make([]store.Scored[store.DocRef], 0, len(hits))
	for _, h := range hits {
		e.mu.RLock()
		persisted, ok := e.docs[h.ID]
		e.mu.RUnlock()
		if !ok || !matchesDocFilter(fromPersisted(persisted), filter) {
			continue
		}
		out = append(out, store.Scored[store.DocRef]{Ref: store.DocRef{DocID: h.ID}, Score: h.Score})
	}
	return truncateAndSortDoc(out, k), nil
}

func (e *Engine) Resolve(ctx context.Context, ref store.ChunkRef) (*store.Resolved, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	chunk, ok := e.chunks[ref.ChunkID]
	if !ok {
		return nil, fmt.Errorf("%w: chunk %q not found", store.ErrBackendFailure, ref.ChunkID)
	}
	persisted, ok := e.docs[chunk.DocID]
	if !ok {
		return nil, fmt.Errorf("%w: document %q not found", store.ErrBackendFailure, chunk.DocID)
	}
	return &store.Resolved{Text: chunk.Text, Chunk: chunk, Doc: fromPersisted(persisted)}, nil
}

func (e *Engine) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs), nil
}

// chunkRefIfMatches resolves id to a ChunkRef and applies filter against the
// owning document's metadata, returning ok=false if either the chunk is
// missing or the filter excludes it.
func (e *Engine) chunkRefIfMatches(id string, filter *store.Filter) (store.ChunkRef, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	chunk, ok := e.chunks[id]
	if !ok {
		return store.ChunkRef{}, false
	}
	if filter != nil {
		persisted, ok := e.docs[chunk.DocID]
		if !ok || !matchesDocFilter(fromPersisted(persisted), filter) {
			return store.ChunkRef{}, false
		}
	}
	return store.ChunkRef{ChunkID: chunk.ID, DocID: chunk.DocID}, true
}

// matchesDocFilter evaluates a metadata Filter against doc's recognized
// field set (doc_id, kind, geographic_scope, currency, category,
// product_entity).
func matchesDocFilter(doc document.Document, filter *store.Filter) bool {
	if filter == nil {
		return true
	}
	switch filter.Field {
	case "doc_id":
		return filter.Matches(doc.ID)
	case "kind":
		return filter.Matches(string(doc.Kind))
	case "geographic_scope":
		return filter.Matches(doc.GeographicScope)
	case "currency":
		return filter.Matches(doc.Currency)
	case "category":
		return containsAny(doc.Categories, filter)
	case "product_entity":
		return containsAny(doc.ProductEntities, filter)
	default:
		return true
	}
}

func containsAny(values []string, filter *store.Filter) bool {
	for _, v := range values {
		if filter.Matches(v) {
			return true
		}
	}
	return false
}

// clampK over-fetches when a post-filter will be applied, since the
// underlying engine's top-k is computed before document-metadata filtering.
func clampK(k int, filter *store.Filter) int {
	if k <= 0 {
		return 0
	}
	if filter == nil {
		return k
	}
	return k * 4
}

func truncateAndSort(in []store.Scored[store.ChunkRef], k int) []store.Scored[store.ChunkRef] {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Score != in[j].Score {
			return in[i].Score > in[j].Score
		}
		return in[i].Ref.ChunkID < in[j].Ref.ChunkID
	})
	if k > 0 && len(in) > k {
		in = in[:k]
	}
	return in
}

func truncateAndSortDoc(in []store.Scored[store.DocRef], k int) []store.Scored[store.DocRef] {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Score != in[j].Score {
			return in[i].Score > in[j].Score
		}
		return in[i].Ref.DocID < in[j].Ref.DocID
	})
	if k > 0 && len(in) > k {
		in = in[:k]
	}
	return in
}

var _ store.Adapter = (*Engine)(nil)
