// Package router implements the conversational router: a pure state
// machine over {INGEST, RETRIEVE, ROUTE, ANSWER, CLARIFY, END} that decides
// whether to rephrase an utterance, retrieve, clarify, answer, or
// terminate, enforcing the clarification budget and the re-clarification
// threshold. Abstention and clarification are values returned from this
// state machine, never errors.
package router

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ragcore/ragcore/internal/config"
	"github.com/ragcore/ragcore/internal/generation"
	"github.com/ragcore/ragcore/internal/llmclient"
	"github.com/ragcore/ragcore/internal/retrieval"
	"github.com/ragcore/ragcore/internal/session"
	"github.com/ragcore/ragcore/internal/store"
)

// State is one node of the router's finite state machine.
type State string

const (
	StateIngest   State = "INGEST"
	StateRetrieve State = "RETRIEVE"
	StateRoute    State = "ROUTE"
	StateAnswer   State = "ANSWER"
	StateClarify  State = "CLARIFY"
	StateEnd      State = "END"
)

// RouteReason records why ROUTE chose CLARIFY, for diagnostics.
type RouteReason string

const (
	ReasonNoEvidence    RouteReason = "no_evidence"
	ReasonLowConfidence RouteReason = "low_confidence"
)

// Trace records the sequence of states visited and the decisions made
// during one Ask call, for diagnostics and tests.
type Trace struct {
	States            []State
	ProcessedQuestion string
	Rephrased         bool
	Merged            bool
	Summary           string
	RouteDecision     State
	RouteReason       RouteReason
	RetrievalDiag     retrieval.Diagnostics
}

// routeThresholds is the small derived-value bundle the router caches per
// config generation, invalidated whenever the configuration is updated.
type routeThresholds struct {
	Similarity float64
	Reclarify  float64
	MaxClarify int
	Strategy   config.RoutingStrategy
}

// Router drives the FSM over a Retriever, a Generator, the LLM collaborator
// (for rephrasing), and the session Manager.
type Router struct {
	retriever  *retrieval.Retriever
	generator  *generation.Generator
	llm        llmclient.Client
	sessions   *session.Manager
	cfg        *config.Store
	thresholds *lru.Cache[uint64, routeThresholds]
	cfgVersion uint64
}

// New constructs a Router wiring together the retriever, generator, LLM
// collaborator, and session manager.
func New(retriever *retrieval.Retriever, generator *generation.Generator, llm llmclient.Client, sessions *session.Manager, cfg *config.Store) *Router {
	cache, _ := lru.New[uint64, routeThresholds](4)
	r := &Router{
		retriever:  retriever,
		generator:  generator,
		llm:        llm,
		sessions:   sessions,
		cfg:        cfg,
		thresholds: cache,
	}
	cfg.OnUpdate(func(*config.Config) {
		r.thresholds.Purge()
		r.cfgVersion++
	})
	return r
}

func (r *Router) currentThresholds() routeThresholds {
	if t, ok := r.thresholds.Get(r.cfgVersion); ok {
		return t
	}
	c := r.cfg.Get()
	t := routeThresholds{
		Similarity: c.SimilarityThreshold,
		Reclarify:  c.ReclarifyThreshold,
		MaxClarify: c.MaxClarify,
		Strategy:   c.RoutingStrategy,
	}
	r.thresholds.Add(r.cfgVersion, t)
	return t
}

// Ask runs the full FSM for one utterance against the session held by h.
// The caller must already hold h (via session.Manager.Acquire) for the
// duration of the call, so one session never runs two FSM transitions
// concurrently.
func (r *Router) Ask(ctx context.Context, h *session.Handle, utterance string, filter *store.Filter) (*generation.AnswerArtifact, *Trace, error) {
	trace := &Trace{States: []State{StateIngest}}
	rec := h.Record()

	processed, rephrased, merged, summary := r.ingest(ctx, rec, utterance)
	trace.ProcessedQuestion = processed
	trace.Rephrased = rephrased
	trace.Merged = merged
	trace.Summary = summary

	// The request itself is activity: slide the inactivity window and record
	// the user's turn before the assistant's reply lands. INGEST already took
	// its history snapshot, so the rephrase never sees the current utterance
	// twice.
	h.Touch()
	h.AppendTurn(session.Turn{
		Role:      session.RoleUser,
		Text:      utterance,
		Timestamp: h.Now(),
	})

	trace.States = append(trace.States, StateRetrieve)
	result, err := r.retriever.Retrieve(ctx, processed, filter)
	if err != nil {
		// retrieval backend failures propagate to the caller, never
		// downgrade to an abstention
		return nil, trace, fmt.Errorf("router: retrieve: %w", err)
	}
	trace.RetrievalDiag = result.Diagnostics
	h.SetLastRetrieval(session.RetrievalSnapshot{
		ChunkCount:    result.Diagnostics.ChunkCount,
		AvgFusedScore: result.Diagnostics.AvgFusedScore,
		MinFusedScore: result.Diagnostics.MinFusedScore,
		MaxFusedScore: result.Diagnostics.MaxFusedScore,
		TopDenseScore: topDenseScore(result.Passages),
		DenseDegraded: result.Diagnostics.DenseDegraded,
	})

	trace.States = append(trace.States, StateRoute)
	decision, reason := r.route(rec, result.Passages)
	trace.RouteDecision = decision
	trace.RouteReason = reason

	switch decision {
	case StateAnswer:
		trace.States = append(trace.States, StateAnswer)
		artifact, err := r.answer(ctx, h, processed, result.Passages, rec.History)
		trace.States = append(trace.States, StateEnd)
		if err != nil {
			// a deadline elapsing mid-generation is a surfaced error;
			// any other generator backend failure downgrades to an
			// abstention artifact rather than propagating
			if ctx.Err() != nil {
				return nil, trace, err
			}
			h.SetClarifyCount(0)
			h.SetPending("", "")
			return generation.AbstainDueToFailure(err.Error()), trace, nil
		}
		return artifact, trace, nil
	case StateClarify:
		trace.States = append(trace.States, StateClarify)
		artifact := r.clarify(ctx, h, processed, result.Passages)
		trace.States = append(trace.States, StateEnd)
		return artifact, trace, nil
	default:
		return nil, trace, fmt.Errorf("router: unreachable route decision %q", decision)
	}
}

func (r *Router) answer(ctx context.Context, h *session.Handle, processed string, passages []retrieval.Passage, history []session.Turn) (*generation.AnswerArtifact, error) {
	artifact, err := r.generator.Generate(ctx, processed, passages, history)
	if err != nil {
		return nil, fmt.Errorf("router: answer: %w", err)
	}
	h.AppendTurn(session.Turn{
		Role:      session.RoleAssistant,
		Text:      artifact.Text,
		Timestamp: h.Now(),
		Sources:   artifact.CitedPassageIDs,
	})
	h.SetClarifyCount(0)
	h.SetPending("", "")
	return artifact, nil
}

func topDenseScore(passages []retrieval.Passage) float64 {
	var max float64
	for _, p := range passages {
		if p.Scores.DenseRaw > max {
			max = p.Scores.DenseRaw
		}
	}
	return max
}
