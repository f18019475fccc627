// Package llmclient defines the two-operation LLM collaborator contract
// (embed, chat) and the retry policy wrapped around it: at most one retry
// on transport errors, never on timeouts.
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is returned when the backing LLM is unreachable after the
// retry policy is exhausted.
var ErrUnavailable = errors.New("llm: unavailable")

// ErrTimeout marks a context-deadline failure, which the retry policy never
// retries.
var ErrTimeout = errors.New("llm: timeout")

// ChatOptions carries request-scoped generation parameters.
type ChatOptions struct {
	Temperature     float64
	MaxOutputTokens int
	// JSONSchema, when non-empty, asks the backing provider to constrain its
	// output to this JSON schema (used by the answer generator's strict
	// structured-response contract).
	JSONSchema []byte
	SchemaName string
}

// Client is the black-box LLM collaborator: embed(text) -> vector,
// chat(system, user, options) -> text. Both operations may fail with a
// transport error or a timeout.
type Client interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Chat(ctx context.Context, system, user string, opts ChatOptions) (string, error)
	EmbeddingDimensions() int
}

// transportError marks an error as a transient transport failure eligible
// for a single retry, as opposed to a timeout (never retried) or a
// permanent failure.
type transportError struct{ err error }

func (t *transportError) Error() string { return t.err.Error() }
func (t *transportError) Unwrap() error { return t.err }

// AsTransportError wraps err so the retrying client recognizes it as
// retryable. Provider adapters call this for network/5xx failures.
func AsTransportError(err error) error {
	if err == nil {
		return nil
	}
	return &transportError{err: err}
}

func isTransport(err error) bool {
	var t *transportError
	return errors.As(err, &t)
}

// Retrying wraps a Client with the core's retry policy: one retry on a
// transport error, zero retries on a context deadline/timeout.
type Retrying struct {
	inner Client
}

// NewRetrying wraps inner with the standard retry policy.
func NewRetrying(inner Client) *Retrying {
	return &Retrying{inner: inner}
}

func (r *Retrying) EmbeddingDimensions() int { return r.inner.EmbeddingDimensions() }

func (r *Retrying) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := r.inner.Embed(ctx, text)
	if err == nil {
		return vec, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
	if !isTransport(err) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	vec, err = r.inner.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: retry failed: %w", ErrUnavailable, err)
	}
	return vec, nil
}

func (r *Retrying) Chat(ctx context.Context, system, user string, opts ChatOptions) (string, error) {
	out, err := r.inner.Chat(ctx, system, user, opts)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
	if !isTransport(err) {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	out, err = r.inner.Chat(ctx, system, user, opts)
	if err != nil {
		return "", fmt.Errorf("%w: retry failed: %w", ErrUnavailable, err)
	}
	return out, nil
}

// WithTimeout bounds a single call with the configured per-call LLM timeout
// (default 30s).
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}
