// Package memstore is the in-process reference implementation of the
// storage engine: an hnsw graph for dense KNN, two bleve indices for
// lexical search (chunk text and document metadata), and a keyed map for
// resolving chunk/document payloads. It exists so the rest of the system
// is exercisable without an external vector database or search cluster.
package memstore

import (
	"context"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// knnIndex wraps an hnsw graph with string-keyed chunk IDs. Deletions are
// lazy: the key/id mapping is dropped but the node is left orphaned in the
// graph, since coder/hnsw's own Delete has known trouble when it empties
// the last node in a layer.
type knnIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	nextKey uint64
	idToKey map[string]uint64
	keyToID map[uint64]string
}

func newKNNIndex() *knnIndex {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.Ml = 0.25
	g.EfSearch = 20
	return &knnIndex{
		graph:   g,
		idToKey: make(map[string]uint64),
		keyToID: make(map[uint64]string),
	}
}

// Upsert inserts or replaces the vector stored under id. Vectors are
// normalized in place so CosineDistance behaves as expected.
func (k *knnIndex) Upsert(id string, vector []float64) {
	vec := normalizeCopy(vector)

	k.mu.Lock()
	defer k.mu.Unlock()
	if oldKey, ok := k.idToKey[id]; ok {
		delete(k.keyToID, oldKey)
	}
	key := k.nextKey
	k.nextKey++
	k.idToKey[id] = key
	k.keyToID[key] = id
	k.graph.Add(hnsw.MakeNode(key, vec))
}

// Delete removes id from the live mapping (lazy delete; see type doc).
func (k *knnIndex) Delete(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if key, ok := k.idToKey[id]; ok {
		delete(k.idToKey, id)
		delete(k.keyToID, key)
	}
}

type knnResult struct {
	ID    string
	Score float64
}

// Search returns up to k nearest neighbors to query, scored as cosine
// similarity clamped to [0,1].
func (k *knnIndex) Search(ctx context.Context, query []float64, n int) ([]knnResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	qv := normalizeCopy(query)

	k.mu.RLock()
	defer k.mu.RUnlock()

	if len(k.keyToID) == 0 || n <= 0 {
		return nil, nil
	}
	// over-fetch to absorb orphaned nodes left by lazy deletes.
	fetch := n * 3
	if fetch < n+8 {
		fetch = n + 8
	}
	nodes := k.graph.Search(qv, fetch)

	out := make([]knnResult, 0, n)
	for _, node := range nodes {
		id, ok := k.keyToID[node.Key]
		if !ok {
			continue // orphaned by a lazy delete
		}
		dist := k.graph.Distance(qv, node.Value)
		out = append(out, knnResult{ID: id, Score: cosineDistanceToSimilarity(dist)})
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func normalizeCopy(v []float64) []float32 {
	out := make([]float32, len(v))
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		for i, x := range v {
			out[i] = float32(x)
		}
		return out
	}
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}

// cosineDistanceToSimilarity converts coder/hnsw's CosineDistance (1 -
// cosine_similarity) back to a [0,1]-clamped similarity score.
func cosineDistanceToSimilarity(dist float32) float64 {
	sim := 1 - float64(dist)
	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	return sim
}
