// Package rrf implements Reciprocal Rank Fusion, the rank-level ensemble
// technique used by the hybrid retriever to combine multiple ranked lists
// of passage identifiers into a single fused ranking.
package rrf

// DefaultC is the standard RRF damping constant.
const DefaultC = 60

// RankedList is one source's ranking: item identifiers in descending
// relevance order. Rank within a list is 1-based.
type RankedList[K comparable] []K

// Fuse combines any number of ranked lists into a single score per item,
// using score(item) = sum over lists containing item of 1/(c+rank).
// Items absent from a list contribute zero from it. c must be > 0; callers
// should clamp to rrf.DefaultC when configuration supplies a non-positive
// value.
func Fuse[K comparable](c float64, lists ...RankedList[K]) map[K]float64 {
	scores := make(map[K]float64)
	for _, list := range lists {
		for i, item := range list {
			rank := i + 1
			scores[item] += 1.0 / (c + float64(rank))
		}
	}
	return scores
}
