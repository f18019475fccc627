// Package ingest loads a JSON corpus file of documents and chunks into the
// storage engine, computing each chunk's embedding vector and token count
// at load time. It is the one-shot batch counterpart to the query-time
// service.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/ragcore/ragcore/internal/document"
	"github.com/ragcore/ragcore/internal/llmclient"
	"github.com/ragcore/ragcore/internal/store/memstore"
	"github.com/ragcore/ragcore/pkg/idgen"
	"github.com/ragcore/ragcore/pkg/tokencount"
)

// rawDocument is the loosely-typed corpus record shape: timestamps arrive as
// either RFC3339 strings or absent, and list fields are plain JSON arrays.
type rawDocument struct {
	ID              string   `json:"id"`
	URL             string   `json:"url"`
	Title           string   `json:"title"`
	Kind            string   `json:"kind"`
	Language        string   `json:"language"`
	Published       any      `json:"published,omitempty"`
	Updated         any      `json:"updated,omitempty"`
	Effective       any      `json:"effective,omitempty"`
	Expires         any      `json:"expires,omitempty"`
	GeographicScope string   `json:"geographic_scope"`
	Currency        string   `json:"currency"`
	ProductEntities []string `json:"product_entities"`
	Categories      []string `json:"categories"`
	DomainAuthority float64  `json:"domain_authority"`
	KindAuthority   float64  `json:"kind_authority"`
	ProvenancePath  string   `json:"provenance_path"`
	Chunks          []string `json:"chunks"`
}

// Corpus is the top-level shape of an ingestible JSON file: a flat list of
// documents, each carrying its own ordered chunk texts.
type Corpus struct {
	Documents []rawDocument `json:"documents"`
}

// Stats summarizes one Load call, for CLI reporting.
type Stats struct {
	Documents int
	Chunks    int
}

// Load decodes a JSON corpus from r, embeds and token-counts every chunk,
// and indexes everything into engine.
func Load(ctx context.Context, r io.Reader, engine *memstore.Engine, llm llmclient.Client, counter tokencount.Counter) (Stats, error) {
	var corpus Corpus
	if err := json.NewDecoder(r).Decode(&corpus); err != nil {
		return Stats{}, fmt.Errorf("ingest: decode corpus: %w", err)
	}

	var stats Stats
	for _, raw := range corpus.Documents {
		doc := toDocument(raw)
		if err := engine.IndexDocument(doc); err != nil {
			return stats, fmt.Errorf("ingest: index document %q: %w", doc.ID, err)
		}
		stats.Documents++

		chunkTexts := lo.Filter(raw.Chunks, func(text string, _ int) bool { return text != "" })
		for position, text := range chunkTexts {
			chunk := document.NewChunk(doc.ID, position, text)
			chunk.TokenCount = counter.Count(text)
			chunk.ContainsCurrency = containsCurrencySymbol(text)
			chunk.ContainsNumbers = containsDigit(text)

			vec, err := llm.Embed(ctx, text)
			if err != nil {
				return stats, fmt.Errorf("ingest: embed chunk %q: %w", chunk.ID, err)
			}
			if err := engine.IndexChunk(*chunk, vec); err != nil {
				return stats, fmt.Errorf("ingest: index chunk %q: %w", chunk.ID, err)
			}
			stats.Chunks++
		}
	}
	return stats, nil
}

// toDocument builds a Document from the raw corpus record. Per the data
// model's "identifier (stable, content-derived)" rule, a document supplies
// its own ID only when the corpus provides one explicitly; otherwise the ID
// is derived from its URL and provenance path, so re-ingesting the same
// source path with the same URL always yields the same identifier.
func toDocument(raw rawDocument) document.Document {
	authority := document.ComputeAuthorityScore(document.AuthorityInputs{
		DomainAuthority: raw.DomainAuthority,
		KindAuthority:   raw.KindAuthority,
	})
	id := raw.ID
	if id == "" {
		id = idgen.ContentHash(raw.URL, raw.ProvenancePath)
	}
	return document.Document{
		ID:              id,
		URL:             raw.URL,
		Title:           raw.Title,
		Kind:            document.Kind(raw.Kind),
		Language:        raw.Language,
		Published:       parseTime(raw.Published),
		Updated:         parseTime(raw.Updated),
		Effective:       parseTime(raw.Effective),
		Expires:         parseTime(raw.Expires),
		GeographicScope: raw.GeographicScope,
		Currency:        raw.Currency,
		ProductEntities: raw.ProductEntities,
		Categories:      raw.Categories,
		AuthorityScore:  authority,
		ProvenancePath:  raw.ProvenancePath,
	}
}

// parseTime coerces a corpus field that may be a date string or absent into
// a *time.Time, using cast's permissive date-layout parsing rather than
// hand-rolled type switches. A value that does not parse as a date string,
// including a JSON number, yields nil.
func parseTime(v any) *time.Time {
	if v == nil {
		return nil
	}
	if s := cast.ToString(v); s != "" {
		if t, err := cast.ToTimeE(s); err == nil {
			return &t
		}
	}
	return nil
}

func containsDigit(text string) bool {
	return lo.SomeBy([]rune(text), func(r rune) bool { return r >= '0' && r <= '9' })
}

func containsCurrencySymbol(text string) bool {
	return lo.SomeBy([]rune(text), func(r rune) bool {
		switch r {
		case '$', '€', '£', '¥':
			return true
		default:
			return false
		}
	})
}
