package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// bm25Doc is the document shape indexed into a bleve in-memory index.
type bm25Doc struct {
	Content string `json:"content"`
}

// bm25Index wraps an in-memory bleve index, scoring matches with bleve's
// default BM25-derived similarity. One instance backs bm25_chunk, a second
// (independent) instance backs bm25_meta.
type bm25Index struct {
	mu    sync.RWMutex
	index bleve.Index
	field string
}

func newBM25Index(field string) (*bm25Index, error) {
	m := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("memstore: new bm25 index: %w", err)
	}
	return &bm25Index{index: idx, field: field}, nil
}

// Upsert (re)indexes id with the given text.
func (b *bm25Index) Upsert(id, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Index(id, bm25Doc{Content: text})
}

// Delete removes id from the index.
func (b *bm25Index) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Delete(id)
}

type bm25Result struct {
	ID    string
	Score float64
}

// Search returns up to k matches for queryText ranked by bleve's score.
func (b *bm25Index) Search(ctx context.Context, queryText string, k int) ([]bm25Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(queryText) == "" || k <= 0 {
		return nil, nil
	}

	q := bleve.NewMatchQuery(queryText)
	q.SetField(b.field)
	req := bleve.NewSearchRequest(q)
	req.Size = k

	b.mu.RLock()
	res, err := b.index.SearchInContext(ctx, req)
	b.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("memstore: bm25 search: %w", err)
	}

	out := make([]bm25Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, bm25Result{ID: hit.ID, Score: hit.Score})
	}
	return out, nil
}
