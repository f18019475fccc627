// Package facade is the single glue surface the HTTP layer calls into. It
// resolves or rejects sessions through the session manager, enforces the
// per-request deadline, and delegates the actual FSM run to the
// conversational router.
package facade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ragcore/ragcore/internal/config"
	"github.com/ragcore/ragcore/internal/generation"
	"github.com/ragcore/ragcore/internal/router"
	"github.com/ragcore/ragcore/internal/session"
	"github.com/ragcore/ragcore/internal/store"
)

// ErrDeadlineExceeded reports that the per-request total deadline (default
// 60s) elapsed before Ask produced a terminal artifact.
var ErrDeadlineExceeded = errors.New("facade: deadline exceeded")

// Facade wires the session manager and conversational router behind a
// single ask(sessionID, utterance) entry point, plus the read surfaces for
// session state, configuration, and diagnostics the HTTP layer exposes.
type Facade struct {
	sessions *session.Manager
	router   *router.Router
	cfg      *config.Store
	log      *slog.Logger
}

// New constructs a Facade. log may be nil, in which case slog.Default() is
// used.
func New(sessions *session.Manager, rt *router.Router, cfg *config.Store, log *slog.Logger) *Facade {
	if log == nil {
		log = slog.Default()
	}
	return &Facade{sessions: sessions, router: rt, cfg: cfg, log: log}
}

// CreateSession issues a new session, optionally seeding its rolling history
// from a client-supplied conversation_history. The seed applies only at
// creation; an existing session's server-side record is never merged with
// client-supplied turns.
func (f *Facade) CreateSession(ctx context.Context, seedHistory []session.Turn) (session.Record, error) {
	rec, err := f.sessions.Create(ctx)
	if err != nil {
		return session.Record{}, fmt.Errorf("facade: create session: %w", err)
	}
	if len(seedHistory) == 0 {
		return rec, nil
	}
	if err := f.sessions.SeedHistory(ctx, rec.ID, seedHistory); err != nil {
		return session.Record{}, fmt.Errorf("facade: seed session history: %w", err)
	}
	return f.sessions.Get(ctx, rec.ID)
}

// GetSession returns the current state of id, or session.ErrNotFound.
func (f *Facade) GetSession(ctx context.Context, id string) (session.Record, error) {
	return f.sessions.Get(ctx, id)
}

// ExtendSession resets id's inactivity timeout and returns the remaining
// time, or session.ErrNotFound.
func (f *Facade) ExtendSession(ctx context.Context, id string) (time.Duration, error) {
	return f.sessions.Extend(ctx, id)
}

// EndSession idempotently destroys a session.
func (f *Facade) EndSession(ctx context.Context, id string) {
	f.sessions.End(ctx, id)
}

// AskResult is the terminal artifact plus the diagnostics the HTTP layer's
// /chat response and last-run diagnostics endpoint both need.
type AskResult struct {
	Artifact *generation.AnswerArtifact
	Trace    *router.Trace
}

// Ask resolves sessionID, enforces the configured per-request deadline
// around the router's full FSM run, and returns the terminal artifact. A
// session that is unknown or has expired surfaces session.ErrNotFound
// (mapped to HTTP 410/404 by the caller); a deadline elapsed mid-request
// surfaces ErrDeadlineExceeded.
func (f *Facade) Ask(ctx context.Context, sessionID, utterance string, filter *store.Filter) (*AskResult, error) {
	cfg := f.cfg.Get()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.RequestTimeoutSeconds)*time.Second)
	defer cancel()

	h, err := f.sessions.Acquire(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, err
		}
		return nil, f.deadlineOrErr(ctx, err)
	}
	defer h.Release()

	log := f.log.With("session_id", sessionID)

	artifact, trace, err := f.router.Ask(ctx, h, utterance, filter)
	if err != nil {
		log.Error("ask failed", "error", err)
		return nil, f.deadlineOrErr(ctx, err)
	}
	log.Info("ask completed", "kind", artifact.Kind, "route_decision", trace.RouteDecision)
	return &AskResult{Artifact: artifact, Trace: trace}, nil
}

// deadlineOrErr reclassifies err as ErrDeadlineExceeded when ctx's deadline
// has elapsed, so callers never need to inspect context.DeadlineExceeded
// directly.
func (f *Facade) deadlineOrErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrDeadlineExceeded, err)
	}
	return err
}

// Config returns the current configuration, for the /chat-config read
// endpoint.
func (f *Facade) Config() *config.Config {
	return f.cfg.Get()
}

// UpdateConfig validates and swaps in a new configuration, for the
// /chat-config write endpoint. Returns config.ErrInvalid without mutating
// state on a validation failure.
func (f *Facade) UpdateConfig(cfg *config.Config) error {
	return f.cfg.Update(cfg)
}

// SessionCount reports the number of live sessions, for diagnostics.
func (f *Facade) SessionCount() int {
	return f.sessions.Count()
}
