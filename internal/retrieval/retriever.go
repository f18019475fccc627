// Package retrieval implements the hybrid retriever: parallel dense and
// lexical sub-retrievals fused by Reciprocal Rank Fusion and adjusted by a
// clipped heuristic term. A failed sub-retriever degrades the result rather
// than aborting the group.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ragcore/ragcore/internal/config"
	"github.com/ragcore/ragcore/internal/document"
	"github.com/ragcore/ragcore/internal/llmclient"
	"github.com/ragcore/ragcore/internal/store"
	"github.com/ragcore/ragcore/pkg/clock"
	"github.com/ragcore/ragcore/pkg/idgen"
	"github.com/ragcore/ragcore/pkg/rrf"
)

// ErrBackendFailure is raised only when every attempted sub-retriever
// fails.
var ErrBackendFailure = errors.New("retrieval: backend failure")

// Passage is one ranked result: a resolved chunk/document pair with its
// per-signal diagnostic scores and final rank.
type Passage struct {
	Chunk  document.Chunk
	Doc    document.Document
	Text   string
	Scores SignalScores
	Rank   int
}

// SignalScores carries the per-signal diagnostics reported alongside every
// passage: dense, bm25_chunk, bm25_meta, heuristic, and the fused RRF
// total. Dense is the pool-normalized score under the configured
// normalization policy; DenseRaw is the adapter's [0,1] cosine similarity,
// the value the router's similarity thresholds compare against (min-max
// always maps the pool's best candidate to 1, which would make a threshold
// comparison vacuous).
type SignalScores struct {
	Dense     float64
	DenseRaw  float64
	BM25Chunk float64
	BM25Meta  float64
	Heuristic float64
	RRF       float64
	Final     float64
}

// Diagnostics reports pool-level facts about one retrieval call, including
// whether the retriever degraded to BM25-only because embeddings were
// unavailable.
type Diagnostics struct {
	ChunkCount     int
	AvgFusedScore  float64
	MinFusedScore  float64
	MaxFusedScore  float64
	DenseDegraded  bool
	FailedSignals  []string
}

// Result is the retriever's full response: the ranked passage list plus
// diagnostics.
type Result struct {
	Passages    []Passage
	Diagnostics Diagnostics
}

// metadataExpandChunks is the number of top chunks pulled per document
// matched by bm25_meta.
const metadataExpandChunks = 3

// Retriever runs hybrid retrieval over a store.Adapter and an
// llmclient.Client.
type Retriever struct {
	adapter store.Adapter
	llm     llmclient.Client
	cfg     *config.Store
	clock   clock.Clock
}

// New constructs a Retriever using the real system clock.
func New(adapter store.Adapter, llm llmclient.Client, cfg *config.Store) *Retriever {
	return &Retriever{adapter: adapter, llm: llm, cfg: cfg, clock: clock.New()}
}

// NewWithClock constructs a Retriever with an injected clock, for
// deterministic freshness-decay tests.
func NewWithClock(adapter store.Adapter, llm llmclient.Client, cfg *config.Store, c clock.Clock) *Retriever {
	return &Retriever{adapter: adapter, llm: llm, cfg: cfg, clock: c}
}

// Retrieve runs the hybrid fan-out for utterance and returns a
// deterministically ranked passage list. Under retrieval_method "semantic"
// the lexical sub-retrievers are skipped and only dense KNN contributes,
// sized by retrieval_top_k rather than the hybrid pool configuration.
func (r *Retriever) Retrieve(ctx context.Context, utterance string, filter *store.Filter) (*Result, error) {
	cfg := r.cfg.Get()
	hybrid := cfg.RetrievalMethod == config.RetrievalMethodHybrid

	var (
		mu            sync.Mutex
		denseList     rrf.RankedList[store.ChunkRef]
		bm25ChunkList rrf.RankedList[store.ChunkRef]
		metaChunkList rrf.RankedList[store.ChunkRef]
		denseRaw      = map[string]float64{}
		bm25Scores    = map[string]float64{}
		metaScores    = map[string]float64{}
		denseDegraded bool
		failed        []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	attempted := 1

	g.Go(func() error {
		vec, err := r.llm.Embed(gctx, utterance)
		if err != nil {
			mu.Lock()
			denseDegraded = true
			failed = append(failed, "dense")
			mu.Unlock()
			return nil // degrade, do not fail the group
		}
		hits, err := r.adapter.KNN(gctx, vec, cfg.Hybrid.KEmbed, filter)
		if err != nil {
			mu.Lock()
			failed = append(failed, "dense")
			mu.Unlock()
			return nil
		}
		mu.Lock()
		for _, h := range hits {
			denseList = append(denseList, h.Ref)
			denseRaw[h.Ref.ChunkID] = normalizeUnit(h.Score)
		}
		mu.Unlock()
		return nil
	})

	if hybrid {
		attempted = 3

		g.Go(func() error {
			hits, err := r.adapter.BM25Chunk(gctx, utterance, cfg.Hybrid.KBM25Chunk, filter)
			if err != nil {
				mu.Lock()
				failed = append(failed, "bm25_chunk")
				mu.Unlock()
				return nil
			}
			mu.Lock()
			for _, h := range hits {
				bm25ChunkList = append(bm25ChunkList, h.Ref)
				bm25Scores[h.Ref.ChunkID] = h.Score
			}
			mu.Unlock()
			return nil
		})

		g.Go(func() error {
			docHits, err := r.adapter.BM25Meta(gctx, utterance, cfg.Hybrid.KBM25MetaDocs, filter)
			if err != nil {
				mu.Lock()
				failed = append(failed, "bm25_meta")
				mu.Unlock()
				return nil
			}
			expanded, err := r.expandMetaDocs(gctx, docHits, utterance)
			if err != nil {
				mu.Lock()
				failed = append(failed, "bm25_meta")
				mu.Unlock()
				return nil
			}
			mu.Lock()
			for _, h := range expanded {
				metaChunkList = append(metaChunkList, h.Ref)
				metaScores[h.Ref.ChunkID] = h.Score
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendFailure, err)
	}

	// Surfaced only when every attempted sub-retriever failed; empty results
	// with no error are allowed and flow through to the router's no-evidence
	// handling.
	if len(failed) == attempted {
		return nil, fmt.Errorf("%w: all sub-retrievers failed", ErrBackendFailure)
	}

	denseScores := make(map[string]float64, len(denseRaw))
	for id, v := range denseRaw {
		denseScores[id] = v
	}
	if cfg.Hybrid.DenseNormalization == config.DenseNormalizationMinMax {
		minMaxNormalize(denseScores)
	}

	fused := rrf.Fuse(cfg.Hybrid.RRFConstant,
		rrf.RankedList[store.ChunkRef](truncate(denseList, cfg.Hybrid.KEmbed)),
		rrf.RankedList[store.ChunkRef](truncate(bm25ChunkList, cfg.Hybrid.KBM25Chunk)),
		rrf.RankedList[store.ChunkRef](metaChunkList),
	)

	pool := poolFrom(fused, cfg.Hybrid.KRRF)
	median := medianScore(fused, pool)

	now := r.clock.Now()
	passages := make([]Passage, 0, len(pool))
	for _, ref := range pool {
		resolved, err := r.adapter.Resolve(ctx, ref)
		if err != nil {
			continue
		}
		rrfScore := fused[ref]
		heuristic := clippedHeuristic(cfg.Heuristics, resolved.Chunk, resolved.Doc, now, median)
		passages = append(passages, Passage{
			Chunk: resolved.Chunk,
			Doc:   resolved.Doc,
			Text:  resolved.Text,
			Scores: SignalScores{
				Dense:     denseScores[ref.ChunkID],
				DenseRaw:  denseRaw[ref.ChunkID],
				BM25Chunk: bm25Scores[ref.ChunkID],
				BM25Meta:  metaScores[ref.ChunkID],
				Heuristic: heuristic,
				RRF:       rrfScore,
				Final:     rrfScore + heuristic,
			},
		})
	}

	sort.SliceStable(passages, func(i, j int) bool {
		if passages[i].Scores.Final != passages[j].Scores.Final {
			return passages[i].Scores.Final > passages[j].Scores.Final
		}
		if passages[i].Scores.Dense != passages[j].Scores.Dense {
			return passages[i].Scores.Dense > passages[j].Scores.Dense
		}
		return passages[i].Chunk.ID < passages[j].Chunk.ID
	})

	kFinal := cfg.Hybrid.KFinal
	if !hybrid {
		kFinal = cfg.RetrievalTopK
	}
	if len(passages) > kFinal {
		passages = passages[:kFinal]
	}
	for i := range passages {
		passages[i].Rank = i + 1
	}

	diag := Diagnostics{
		ChunkCount:    len(passages),
		DenseDegraded: denseDegraded,
		FailedSignals: failed,
	}
	if len(passages) > 0 {
		sum, min, max := 0.0, passages[0].Scores.Final, passages[0].Scores.Final
		for _, p := range passages {
			sum += p.Scores.Final
			if p.Scores.Final < min {
				min = p.Scores.Final
			}
			if p.Scores.Final > max {
				max = p.Scores.Final
			}
		}
		diag.AvgFusedScore = sum / float64(len(passages))
		diag.MinFusedScore = min
		diag.MaxFusedScore = max
	}

	return &Result{Passages: passages, Diagnostics: diag}, nil
}

// expandMetaDocs pulls the top metadataExpandChunks chunks for each
// document bm25_meta matched, preferring per-document BM25 rank against
// the utterance and falling back to in-document position when the chunk
// text shares no terms with it. The fallback is what makes the metadata
// signal matter: a document matched only by its title or entities still
// contributes its leading chunks. Each expanded chunk inherits its parent
// document's metadata-match score for its fusion list.
func (r *Retriever) expandMetaDocs(ctx context.Context, docs []store.Scored[store.DocRef], utterance string) ([]store.Scored[store.ChunkRef], error) {
	var out []store.Scored[store.ChunkRef]
	for _, d := range docs {
		docFilter := &store.Filter{Field: "doc_id", Eq: d.Ref.DocID}
		hits, err := r.adapter.BM25Chunk(ctx, utterance, metadataExpandChunks, docFilter)
		if err != nil {
			return nil, err
		}
		if len(hits) == 0 {
			refs, err := r.chunksByPosition(ctx, d.Ref.DocID, metadataExpandChunks)
			if err != nil {
				return nil, err
			}
			for _, ref := range refs {
				out = append(out, store.Scored[store.ChunkRef]{Ref: ref, Score: d.Score})
			}
			continue
		}
		for _, h := range hits {
			out = append(out, store.Scored[store.ChunkRef]{Ref: h.Ref, Score: d.Score})
		}
	}
	return out, nil
}

// chunksByPosition resolves docID's first m chunks through their canonical
// "<docId>_chunk_<ordinal>" identifiers, stopping at the first ordinal the
// store does not hold.
func (r *Retriever) chunksByPosition(ctx context.Context, docID string, m int) ([]store.ChunkRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []store.ChunkRef
	for ordinal := 0; ordinal < m; ordinal++ {
		ref := store.ChunkRef{ChunkID: idgen.ChunkID(docID, ordinal), DocID: docID}
		if _, err := r.adapter.Resolve(ctx, ref); err != nil {
			break
		}
		out = append(out, ref)
	}
	return out, nil
}

func truncate(list rrf.RankedList[store.ChunkRef], k int) []store.ChunkRef {
	if k > 0 && len(list) > k {
		return list[:k]
	}
	return list
}

func poolFrom(fused map[store.ChunkRef]float64, kRRF int) []store.ChunkRef {
	pool := make([]store.ChunkRef, 0, len(fused))
	for ref := range fused {
		pool = append(pool, ref)
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if fused[pool[i]] != fused[pool[j]] {
			return fused[pool[i]] > fused[pool[j]]
		}
		return pool[i].ChunkID < pool[j].ChunkID
	})
	if kRRF > 0 && len(pool) > kRRF {
		pool = pool[:kRRF]
	}
	return pool
}

func medianScore(fused map[store.ChunkRef]float64, pool []store.ChunkRef) float64 {
	if len(pool) == 0 {
		return 0
	}
	scores := make([]float64, len(pool))
	for i, ref := range pool {
		scores[i] = fused[ref]
	}
	sort.Float64s(scores)
	mid := len(scores) / 2
	if len(scores)%2 == 0 {
		return (scores[mid-1] + scores[mid]) / 2
	}
	return scores[mid]
}

// minMaxNormalize rescales scores in place to span [0,1] across the dense
// candidate pool. A degenerate pool (all equal, or a single candidate) maps
// every score to 1,
// since every candidate is equally the best available match.
func minMaxNormalize(scores map[string]float64) {
	if len(scores) == 0 {
		return
	}
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range scores {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max <= min {
		for k := range scores {
			scores[k] = 1
		}
		return
	}
	for k, v := range scores {
		scores[k] = (v - min) / (max - min)
	}
}

func normalizeUnit(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func clippedHeuristic(w config.HeuristicWeights, chunk document.Chunk, doc document.Document, now time.Time, median float64) float64 {
	adj := doc.AuthorityScore*w.Authority + boolTerm(chunk.ContainsCurrency)*w.Currency +
		boolTerm(chunk.ContainsNumbers)*w.Number + document.FreshnessDecay(doc.Updated, now)*w.Freshness

	clip := math.Abs(median) * 0.2
	if adj > clip {
		adj = clip
	}
	if adj < -clip {
		adj = -clip
	}
	return adj
}

func boolTerm(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
