package llmclient

import (
	"context"
	"time"
)

// Timed bounds every Embed/Chat call with the configured per-call LLM
// timeout (default 30s), so callers never need to manage the
// deadline themselves. Compose outside Retrying: each retry attempt then
// shares one call budget, and an elapsed budget reads as a timeout the
// retry policy refuses to retry.
type Timed struct {
	inner   Client
	timeout time.Duration
}

// NewTimed wraps inner so each call carries its own deadline.
func NewTimed(inner Client, timeout time.Duration) *Timed {
	return &Timed{inner: inner, timeout: timeout}
}

func (t *Timed) EmbeddingDimensions() int { return t.inner.EmbeddingDimensions() }

func (t *Timed) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Embed(ctx, text)
}

func (t *Timed) Chat(ctx context.Context, system, user string, opts ChatOptions) (string, error) {
	ctx, cancel := WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Chat(ctx, system, user, opts)
}
