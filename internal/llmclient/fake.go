package llmclient

import (
	"context"
	"hash/fnv"
	"math"
)

// Fake is a deterministic, in-memory Client used by the test suite so tests
// never hit a network. Failure hooks and per-call overrides let tests
// script degraded-backend behavior.
type Fake struct {
	dims       int
	ChatFunc   func(system, user string) (string, error)
	EmbedFunc  func(text string) ([]float64, error)
	FailEmbed  error
	FailChat   error
}

// NewFake returns a Fake with a fixed embedding dimensionality.
func NewFake(dims int) *Fake {
	return &Fake{dims: dims}
}

func (f *Fake) EmbeddingDimensions() int { return f.dims }

// Embed hashes text into a deterministic unit vector. Semantically near
// queries won't cluster the way a real embedding model would, so hybrid
// retriever tests that need meaningful dense similarity seed Fake.EmbedFunc
// with a small hand-built lookup instead of relying on the hash fallback.
func (f *Fake) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.FailEmbed != nil {
		return nil, f.FailEmbed
	}
	if f.EmbedFunc != nil {
		return f.EmbedFunc(text)
	}
	return hashEmbed(text, f.dims), nil
}

func (f *Fake) Chat(ctx context.Context, system, user string, opts ChatOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.FailChat != nil {
		return "", f.FailChat
	}
	if f.ChatFunc != nil {
		return f.ChatFunc(system, user)
	}
	return "", nil
}

func hashEmbed(text string, dims int) []float64 {
	if dims <= 0 {
		dims = 16
	}
	vec := make([]float64, dims)
	h := fnv.New64a()
	for i := 0; i < dims; i++ {
		h.Reset()
		_, _ = h.Write([]byte{byte(i)})
		_, _ = h.Write([]byte(text))
		sum := h.Sum64()
		vec[i] = float64(sum%1000) / 1000.0
	}
	normalize(vec)
	return vec
}

func normalize(vec []float64) {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] /= norm
	}
}
