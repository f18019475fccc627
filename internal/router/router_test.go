package router

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ragcore/ragcore/internal/config"
	"github.com/ragcore/ragcore/internal/document"
	"github.com/ragcore/ragcore/internal/generation"
	"github.com/ragcore/ragcore/internal/llmclient"
	"github.com/ragcore/ragcore/internal/retrieval"
	"github.com/ragcore/ragcore/internal/session"
	"github.com/ragcore/ragcore/internal/store/memstore"
	"github.com/ragcore/ragcore/pkg/clock"
)

func testRecord(clarifyCount int) session.Record {
	return session.Record{ClarifyCount: clarifyCount}
}

func passageWithDense(dense float64) retrieval.Passage {
	return retrieval.Passage{Scores: retrieval.SignalScores{Dense: dense, DenseRaw: dense, Final: dense}}
}

func TestRouteDecisionTable(t *testing.T) {
	cfg := config.NewStore(config.Default()) // similarity=0.75, reclarify=0.55, max_clarify=2
	cache, err := lru.New[uint64, routeThresholds](4)
	require.NoError(t, err)
	r := &Router{cfg: cfg, thresholds: cache}

	cases := []struct {
		name     string
		rec      session.Record
		passages []retrieval.Passage
		want     State
		reason   RouteReason
	}{
		{"no_evidence_under_budget", testRecord(0), nil, StateClarify, ReasonNoEvidence},
		{"no_evidence_budget_exhausted", testRecord(2), nil, StateAnswer, ""},
		{"high_similarity_answers", testRecord(0), []retrieval.Passage{passageWithDense(0.9)}, StateAnswer, ""},
		{"low_similarity_clarifies", testRecord(0), []retrieval.Passage{passageWithDense(0.3)}, StateClarify, ReasonLowConfidence},
		{"low_similarity_budget_exhausted_answers", testRecord(2), []retrieval.Passage{passageWithDense(0.3)}, StateAnswer, ""},
		{"middle_band_answers", testRecord(0), []retrieval.Passage{passageWithDense(0.6)}, StateAnswer, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, reason := r.route(tc.rec, tc.passages)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestRouteSimpleStrategyAlwaysAnswers(t *testing.T) {
	cfg := config.Default()
	cfg.RoutingStrategy = config.RoutingStrategySimple
	cfgStore := config.NewStore(cfg)
	cache, err := lru.New[uint64, routeThresholds](4)
	require.NoError(t, err)
	r := &Router{cfg: cfgStore, thresholds: cache}

	got, reason := r.route(testRecord(0), nil)
	assert.Equal(t, StateAnswer, got)
	assert.Empty(t, reason)

	got, _ = r.route(testRecord(0), []retrieval.Passage{passageWithDense(0.1)})
	assert.Equal(t, StateAnswer, got)
}

func TestIngestMergesClarificationResponse(t *testing.T) {
	cfg := config.NewStore(config.Default())
	fake := llmclient.NewFake(4)
	r := &Router{cfg: cfg, llm: fake}

	rec := session.Record{PendingQuestion: "What are the rates?", PendingClarification: "Did you mean Rewards or Deposits?"}
	processed, rephrased, merged, _ := r.ingest(context.Background(), rec, "Preferred Deposits")

	assert.True(t, merged)
	assert.False(t, rephrased)
	assert.Contains(t, processed, "What are the rates?")
	assert.Contains(t, processed, "Preferred Deposits")
}

func TestIngestSkipsRephraseWhenLLMUnavailable(t *testing.T) {
	cfg := config.NewStore(config.Default())
	fake := llmclient.NewFake(4)
	fake.FailChat = assertErr
	r := &Router{cfg: cfg, llm: fake}

	rec := session.Record{History: []session.Turn{{Role: session.RoleUser, Text: "tell me about Gold"}}}
	processed, rephrased, merged, summary := r.ingest(context.Background(), rec, "what about it?")

	assert.False(t, rephrased)
	assert.False(t, merged)
	assert.Equal(t, "what about it?", processed)
	assert.Contains(t, summary, "skipped")
}

var assertErr = assertError{}

type assertError struct{}

func (assertError) Error() string { return "llm unavailable" }

func TestClarificationThenResolution(t *testing.T) {
	engine, err := memstore.New()
	require.NoError(t, err)

	docRewards := document.Document{ID: "doc-rewards", Kind: document.KindFAQ, ProductEntities: []string{"Preferred Rewards"}}
	docDeposits := document.Document{ID: "doc-deposits", Kind: document.KindFAQ, ProductEntities: []string{"Preferred Deposits"}}
	require.NoError(t, engine.IndexDocument(docRewards))
	require.NoError(t, engine.IndexDocument(docDeposits))

	chunkRewards := document.Chunk{ID: "doc-rewards_chunk_0", DocID: "doc-rewards", Text: "Preferred Rewards tiers offer cash back rates based on balance."}
	chunkDeposits := document.Chunk{ID: "doc-deposits_chunk_0", DocID: "doc-deposits", Text: "Preferred Deposits rates vary by term length."}

	vecRewards := []float64{1, 0, 0, 0}
	vecDeposits := []float64{0, 1, 0, 0}
	vecAmbiguous := []float64{1, 1, 1, 1}

	require.NoError(t, engine.IndexChunk(chunkRewards, vecRewards))
	require.NoError(t, engine.IndexChunk(chunkDeposits, vecDeposits))

	fakeLLM := llmclient.NewFake(4)
	fakeLLM.EmbedFunc = func(text string) ([]float64, error) {
		switch {
		case strings.Contains(text, "Preferred Deposits"):
			return vecDeposits, nil
		case strings.Contains(text, "Preferred Rewards") && !strings.Contains(text, "Preferred Deposits"):
			return vecRewards, nil
		default:
			return vecAmbiguous, nil
		}
	}
	fakeLLM.ChatFunc = func(system, user string) (string, error) {
		if strings.Contains(user, "Deposits rates vary by term length") {
			ordinal := findOrdinal(user, "Deposits rates vary by term length")
			return directAnswerJSON(ordinal, "Preferred Deposits rates vary by term length."), nil
		}
		return clarificationJSON(), nil
	}

	cfgStore := config.NewStore(config.Default())
	retriever := retrieval.New(engine, fakeLLM, cfgStore)
	generator := generation.New(fakeLLM)
	sessions := session.NewManager(cfgStore, clock.New())
	rt := New(retriever, generator, fakeLLM, sessions, cfgStore)

	ctx := context.Background()
	rec, err := sessions.Create(ctx)
	require.NoError(t, err)

	h, err := sessions.Acquire(ctx, rec.ID)
	require.NoError(t, err)
	artifact1, trace1, err := rt.Ask(ctx, h, "What are the rates?", nil)
	h.Release()
	require.NoError(t, err)
	assert.Equal(t, generation.KindClarification, artifact1.Kind)
	assert.Equal(t, StateClarify, trace1.RouteDecision)
	assert.Contains(t, artifact1.ClarificationText, "Preferred")

	h, err = sessions.Acquire(ctx, rec.ID)
	require.NoError(t, err)
	artifact2, trace2, err := rt.Ask(ctx, h, "Preferred Deposits", nil)
	finalRec := h.Record()
	h.Release()
	require.NoError(t, err)

	assert.Equal(t, StateAnswer, trace2.RouteDecision)
	assert.Equal(t, generation.KindDirect, artifact2.Kind)
	assert.Contains(t, artifact2.CitedPassageIDs, "doc-deposits_chunk_0")
	assert.NotContains(t, artifact2.CitedPassageIDs, "doc-rewards_chunk_0")
	assert.Equal(t, 0, finalRec.ClarifyCount)

	// Both user utterances and both assistant replies land in history, in
	// order.
	require.Len(t, finalRec.History, 4)
	assert.Equal(t, session.RoleUser, finalRec.History[0].Role)
	assert.Equal(t, session.RoleAssistant, finalRec.History[1].Role)
	assert.Equal(t, session.RoleUser, finalRec.History[2].Role)
	assert.Equal(t, session.RoleAssistant, finalRec.History[3].Role)
}

func TestAnswerNodeDowngradesGeneratorFailureToAbstention(t *testing.T) {
	engine, err := memstore.New()
	require.NoError(t, err)

	doc := document.Document{ID: "doc-1", Kind: document.KindFAQ}
	require.NoError(t, engine.IndexDocument(doc))
	chunk := document.Chunk{ID: "doc-1_chunk_0", DocID: "doc-1", Text: "Gold tier requires $20,000 in combined balances."}
	vec := []float64{1, 0, 0, 0}
	require.NoError(t, engine.IndexChunk(chunk, vec))

	fakeLLM := llmclient.NewFake(4)
	fakeLLM.EmbedFunc = func(string) ([]float64, error) { return vec, nil }
	fakeLLM.FailChat = assertErr

	cfgStore := config.NewStore(config.Default())
	retriever := retrieval.New(engine, fakeLLM, cfgStore)
	generator := generation.New(fakeLLM)
	sessions := session.NewManager(cfgStore, clock.New())
	rt := New(retriever, generator, fakeLLM, sessions, cfgStore)

	ctx := context.Background()
	rec, err := sessions.Create(ctx)
	require.NoError(t, err)
	h, err := sessions.Acquire(ctx, rec.ID)
	require.NoError(t, err)
	artifact, trace, err := rt.Ask(ctx, h, "What balance is needed for Gold?", nil)
	h.Release()

	require.NoError(t, err)
	assert.Equal(t, StateAnswer, trace.RouteDecision)
	assert.Equal(t, generation.KindAbstain, artifact.Kind)
	assert.True(t, artifact.Abstained)
	assert.True(t, artifact.Faithfulness.IsNA())
	assert.True(t, artifact.Completeness.IsNA())
}

// findOrdinal locates marker's nearest preceding "[N] " passage prefix on
// the same line, mimicking how a model would read off a passage's ordinal
// before citing it.
func findOrdinal(user, marker string) int {
	idx := strings.Index(user, marker)
	if idx < 0 {
		return 1
	}
	lineStart := strings.LastIndex(user[:idx], "\n") + 1
	line := user[lineStart:idx]
	start := strings.Index(line, "[")
	end := strings.Index(line, "]")
	if start < 0 || end < 0 || end <= start+1 {
		return 1
	}
	n, err := strconv.Atoi(line[start+1 : end])
	if err != nil {
		return 1
	}
	return n
}

func directAnswerJSON(ordinal int, text string) string {
	return `{
		"answer_text": "` + text + `",
		"answer_kind": "direct",
		"abstained": false,
		"faithfulness": 0.9,
		"completeness": 0.9,
		"missing_information": [],
		"reasoning_notes": "",
		"clarification_question": "",
		"citations": [` + strconv.Itoa(ordinal) + `]
	}`
}

func clarificationJSON() string {
	return `{
		"answer_text": "",
		"answer_kind": "clarification",
		"abstained": false,
		"faithfulness": "n/a",
		"completeness": "n/a",
		"missing_information": [],
		"reasoning_notes": "ambiguous between two topics",
		"clarification_question": "Did you mean Preferred Rewards, or Preferred Deposits?",
		"citations": []
	}`
}
