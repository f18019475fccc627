package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragcore/ragcore/internal/llmclient"
	"github.com/ragcore/ragcore/internal/store"
	"github.com/ragcore/ragcore/internal/store/memstore"
	"github.com/ragcore/ragcore/pkg/idgen"
	"github.com/ragcore/ragcore/pkg/tokencount"
)

const sampleCorpus = `{
	"documents": [
		{
			"id": "doc-gold",
			"kind": "faq",
			"domain_authority": 0.8,
			"kind_authority": 0.6,
			"product_entities": ["Gold Tier"],
			"chunks": ["Gold tier requires $20,000 in combined balances.", "Contact support for enrollment."]
		}
	]
}`

func TestLoadIndexesDocumentsAndChunks(t *testing.T) {
	engine, err := memstore.New()
	require.NoError(t, err)

	fakeLLM := llmclient.NewFake(3)
	fakeLLM.EmbedFunc = func(string) ([]float64, error) { return []float64{1, 0, 0}, nil }

	stats, err := Load(context.Background(), strings.NewReader(sampleCorpus), engine, fakeLLM, stubCounter{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 2, stats.Chunks)

	count, err := engine.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoadComputesTokenCountAndCurrencyFlag(t *testing.T) {
	engine, err := memstore.New()
	require.NoError(t, err)
	fakeLLM := llmclient.NewFake(3)
	fakeLLM.EmbedFunc = func(string) ([]float64, error) { return []float64{1, 0, 0}, nil }

	_, err = Load(context.Background(), strings.NewReader(sampleCorpus), engine, fakeLLM, tokencount.NewTiktoken())
	require.NoError(t, err)

	ref := store.ChunkRef{ChunkID: idgen.ChunkID("doc-gold", 0), DocID: "doc-gold"}
	resolved, err := engine.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, resolved.Chunk.ContainsCurrency)
	assert.True(t, resolved.Chunk.ContainsNumbers)
	assert.Positive(t, resolved.Chunk.TokenCount)
}

const noIDCorpus = `{
	"documents": [
		{
			"url": "https://bank.example/rates",
			"provenance_path": "/corpus/rates.md",
			"kind": "faq",
			"chunks": ["Rates vary by tier."]
		}
	]
}`

func TestLoadDerivesContentHashIDWhenCorpusOmitsOne(t *testing.T) {
	engine, err := memstore.New()
	require.NoError(t, err)
	fakeLLM := llmclient.NewFake(3)
	fakeLLM.EmbedFunc = func(string) ([]float64, error) { return []float64{1, 0, 0}, nil }

	stats, err := Load(context.Background(), strings.NewReader(noIDCorpus), engine, fakeLLM, stubCounter{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)

	wantID := idgen.ContentHash("https://bank.example/rates", "/corpus/rates.md")
	ref := store.ChunkRef{ChunkID: idgen.ChunkID(wantID, 0), DocID: wantID}
	resolved, err := engine.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "Rates vary by tier.", resolved.Text)
}

type stubCounter struct{}

func (stubCounter) Count(text string) int { return len(text) }
