package router

import (
	"github.com/ragcore/ragcore/internal/config"
	"github.com/ragcore/ragcore/internal/retrieval"
	"github.com/ragcore/ragcore/internal/session"
)

// route implements the ROUTE node's policy-driven decision; no LLM call is
// involved. S is the highest dense similarity in the retrieval set, falling
// back to the highest fused score when dense scores are unavailable
// (BM25-only degraded mode). T, C, M, R are the similarity threshold,
// this question's clarification count, the clarification budget, and the
// re-clarification threshold, respectively. Under routing_strategy
// "simple" the threshold policy is bypassed entirely: every request goes
// straight to ANSWER and the generator's abstention rules are the only
// safety net.
func (r *Router) route(rec session.Record, passages []retrieval.Passage) (State, RouteReason) {
	th := r.currentThresholds()
	c := rec.ClarifyCount

	if th.Strategy == config.RoutingStrategySimple {
		return StateAnswer, ""
	}

	if len(passages) == 0 {
		if c >= th.MaxClarify {
			return StateAnswer, ""
		}
		return StateClarify, ReasonNoEvidence
	}

	s := bestSimilarity(passages)

	if s >= th.Similarity {
		return StateAnswer, ""
	}
	if s < th.Reclarify && c < th.MaxClarify {
		return StateClarify, ReasonLowConfidence
	}
	return StateAnswer, ""
}

// bestSimilarity returns the highest raw dense cosine in the pool, or the
// highest fused score if every passage's dense score is zero (the
// BM25-only degraded mode). Raw
// rather than pool-normalized: min-max normalization pins the pool's best
// candidate to 1, which would make every threshold comparison pass.
func bestSimilarity(passages []retrieval.Passage) float64 {
	var bestDense, bestFused float64
	var anyDense bool
	for _, p := range passages {
		if p.Scores.DenseRaw > 0 {
			anyDense = true
		}
		if p.Scores.DenseRaw > bestDense {
			bestDense = p.Scores.DenseRaw
		}
		if p.Scores.Final > bestFused {
			bestFused = p.Scores.Final
		}
	}
	if anyDense {
		return bestDense
	}
	return bestFused
}
