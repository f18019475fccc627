package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ragcore/ragcore/internal/document"
	"github.com/ragcore/ragcore/internal/store"
)

func mustEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New()
	require.NoError(t, err)
	return e
}

func seedDoc(t *testing.T, e *Engine, id string, kind document.Kind, categories []string) document.Document {
	t.Helper()
	doc := document.Document{ID: id, Kind: kind, Categories: categories, AuthorityScore: 0.5}
	require.NoError(t, e.IndexDocument(doc))
	return doc
}

func TestEngine_BM25Chunk_RanksLexicalMatch(t *testing.T) {
	e := mustEngine(t)
	seedDoc(t, e, "doc1", document.KindFAQ, nil)
	seedDoc(t, e, "doc2", document.KindFAQ, nil)

	c1 := document.NewChunk("doc1", 0, "the wire transfer fee is three dollars")
	c2 := document.NewChunk("doc2", 0, "our loyalty program awards points on purchases")
	require.NoError(t, e.IndexChunk(*c1, nil))
	require.NoError(t, e.IndexChunk(*c2, nil))

	hits, err := e.BM25Chunk(context.Background(), "wire transfer fee", 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, c1.ID, hits[0].Ref.ChunkID)
}

func TestEngine_KNN_RanksBySimilarity(t *testing.T) {
	e := mustEngine(t)
	seedDoc(t, e, "doc1", document.KindFAQ, nil)

	near := document.NewChunk("doc1", 0, "near")
	far := document.NewChunk("doc1", 1, "far")
	require.NoError(t, e.IndexChunk(*near, []float64{1, 0, 0}))
	require.NoError(t, e.IndexChunk(*far, []float64{0, 1, 0}))

	hits, err := e.KNN(context.Background(), []float64{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, near.ID, hits[0].Ref.ChunkID)
	require.Greater(t, hits[0].Score, 0.9)
}

func TestEngine_Filter_ExcludesNonMatchingDocuments(t *testing.T) {
	e := mustEngine(t)
	seedDoc(t, e, "doc1", document.KindPromo, nil)
	seedDoc(t, e, "doc2", document.KindDisclosure, nil)

	c1 := document.NewChunk("doc1", 0, "refund policy details here")
	c2 := document.NewChunk("doc2", 0, "refund policy legal disclosure")
	require.NoError(t, e.IndexChunk(*c1, nil))
	require.NoError(t, e.IndexChunk(*c2, nil))

	filter := &store.Filter{Field: "kind", Eq: string(document.KindDisclosure)}
	hits, err := e.BM25Chunk(context.Background(), "refund policy", 5, filter)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, c2.ID, hits[0].Ref.ChunkID)
}

func TestEngine_Resolve_ReturnsTextAndMetadata(t *testing.T) {
	e := mustEngine(t)
	doc := seedDoc(t, e, "doc1", document.KindTerms, []string{"checking"})
	chunk := document.NewChunk("doc1", 0, "account terms body text")
	require.NoError(t, e.IndexChunk(*chunk, nil))

	res, err := e.Resolve(context.Background(), store.ChunkRef{ChunkID: chunk.ID, DocID: doc.ID})
	require.NoError(t, err)
	require.Equal(t, "account terms body text", res.Text)
	require.Equal(t, doc.ID, res.Doc.ID)
}

func TestEngine_Resolve_UnknownChunk_ReturnsBackendFailure(t *testing.T) {
	e := mustEngine(t)
	_, err := e.Resolve(context.Background(), store.ChunkRef{ChunkID: "missing"})
	require.ErrorIs(t, err, store.ErrBackendFailure)
}

func TestEngine_Count(t *testing.T) {
	e := mustEngine(t)
	seedDoc(t, e, "doc1", document.KindOther, nil)
	seedDoc(t, e, "doc2", document.KindOther, nil)

	n, err := e.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestEngine_Resolve_RoundTripsListFieldsThroughJSONEncoding(t *testing.T) {
	e := mustEngine(t)
	doc := document.Document{
		ID:              "doc1",
		Kind:            document.KindFAQ,
		Categories:      []string{"checking", "savings"},
		ProductEntities: []string{"Gold Tier", "Platinum Tier"},
	}
	require.NoError(t, e.IndexDocument(doc))
	chunk := document.NewChunk("doc1", 0, "tier details")
	require.NoError(t, e.IndexChunk(*chunk, nil))

	res, err := e.Resolve(context.Background(), store.ChunkRef{ChunkID: chunk.ID, DocID: doc.ID})
	require.NoError(t, err)
	require.Equal(t, doc.Categories, res.Doc.Categories)
	require.Equal(t, doc.ProductEntities, res.Doc.ProductEntities)
}

func TestEngine_Resolve_AbsentListFieldsRoundTripToNilNotStoredAsNull(t *testing.T) {
	e := mustEngine(t)
	doc := seedDoc(t, e, "doc1", document.KindOther, nil)
	chunk := document.NewChunk("doc1", 0, "body text")
	require.NoError(t, e.IndexChunk(*chunk, nil))

	res, err := e.Resolve(context.Background(), store.ChunkRef{ChunkID: chunk.ID, DocID: doc.ID})
	require.NoError(t, err)
	require.Nil(t, res.Doc.Categories)
	require.Nil(t, res.Doc.ProductEntities)
}

func TestEngine_BM25Chunk_DocIDFilter_RestrictsToOneDocument(t *testing.T) {
	e := mustEngine(t)
	seedDoc(t, e, "doc1", document.KindFAQ, nil)
	seedDoc(t, e, "doc2", document.KindFAQ, nil)

	c1 := document.NewChunk("doc1", 0, "refund policy for doc1")
	c2 := document.NewChunk("doc2", 0, "refund policy for doc2")
	require.NoError(t, e.IndexChunk(*c1, nil))
	require.NoError(t, e.IndexChunk(*c2, nil))

	hits, err := e.BM25Chunk(context.Background(), "refund policy", 5, &store.Filter{Field: "doc_id", Eq: "doc2"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, c2.ID, hits[0].Ref.ChunkID)
}
