package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragcore/ragcore/internal/config"
	"github.com/ragcore/ragcore/internal/document"
	"github.com/ragcore/ragcore/internal/facade"
	"github.com/ragcore/ragcore/internal/generation"
	"github.com/ragcore/ragcore/internal/llmclient"
	"github.com/ragcore/ragcore/internal/retrieval"
	"github.com/ragcore/ragcore/internal/router"
	"github.com/ragcore/ragcore/internal/session"
	"github.com/ragcore/ragcore/internal/store/memstore"
	"github.com/ragcore/ragcore/pkg/clock"
)

func testServer(t *testing.T) http.Handler {
	t.Helper()

	engine, err := memstore.New()
	require.NoError(t, err)

	doc := document.Document{ID: "doc-gold", Kind: document.KindFAQ}
	require.NoError(t, engine.IndexDocument(doc))
	chunk := document.NewChunk("doc-gold", 0, "Gold tier requires $20,000 in combined balances.")
	require.NoError(t, engine.IndexChunk(*chunk, []float64{1, 0, 0}))

	fakeLLM := llmclient.NewFake(3)
	fakeLLM.EmbedFunc = func(string) ([]float64, error) { return []float64{1, 0, 0}, nil }
	fakeLLM.ChatFunc = func(system, user string) (string, error) {
		return `{
			"answer_text": "Gold tier requires $20,000 in combined balances.",
			"answer_kind": "direct",
			"abstained": false,
			"faithfulness": 0.9,
			"completeness": 0.9,
			"missing_information": [],
			"reasoning_notes": "",
			"clarification_question": "",
			"citations": [1]
		}`, nil
	}

	cfgStore := config.NewStore(config.Default())
	retriever := retrieval.New(engine, fakeLLM, cfgStore)
	generator := generation.New(fakeLLM)
	sessions := session.NewManager(cfgStore, clock.New())
	rt := router.New(retriever, generator, fakeLLM, sessions, cfgStore)
	f := facade.New(sessions, rt, cfgStore, nil)

	return NewServer(f, nil, nil, nil).Handler()
}

func TestSessionLifecycle(t *testing.T) {
	h := testServer(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	require.Equal(t, http.StatusCreated, rr.Code)

	var created sessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.NotEmpty(t, created.SessionID)
	assert.Positive(t, created.RemainingTime)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sessions/"+created.SessionID, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sessions/"+created.SessionID+"/extend", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var extended extendSessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &extended))
	assert.Positive(t, extended.RemainingTime)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/sessions/"+created.SessionID, nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sessions/"+created.SessionID, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestChatReturnsGroundedAnswer(t *testing.T) {
	h := testServer(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	var created sessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	body, err := json.Marshal(chatRequest{Message: "What balance is needed for Gold?", SessionID: created.SessionID})
	require.NoError(t, err)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp.Answer, "$20,000")
	assert.Equal(t, "direct", resp.Metrics.Kind)
	assert.Equal(t, generatedBy, resp.GeneratedBy)
	require.NotNil(t, resp.Metrics.Faithfulness)
	assert.GreaterOrEqual(t, *resp.Metrics.Faithfulness, 0.8)

	// the last-run retrieval snapshot is readable afterwards
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sessions/"+created.SessionID+"/diagnostics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var diag sessionDiagnosticsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &diag))
	assert.Positive(t, diag.ChunkCount)
	assert.Positive(t, diag.TopDenseScore)
}

func TestChatUnknownSessionReturns410(t *testing.T) {
	h := testServer(t)

	body, err := json.Marshal(chatRequest{Message: "hello", SessionID: "does-not-exist"})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body)))
	assert.Equal(t, http.StatusGone, rr.Code)
}

func TestGetAndUpdateConfig(t *testing.T) {
	h := testServer(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chat-config", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var dto configDTO
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dto))
	assert.Equal(t, "hybrid", dto.RetrievalMethod)

	dto.MaxClarify = 5
	body, err := json.Marshal(dto)
	require.NoError(t, err)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/chat-config", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chat-config", nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dto))
	assert.Equal(t, 5, dto.MaxClarify)
}

func TestUpdateConfigRejectsInvalidThresholds(t *testing.T) {
	h := testServer(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chat-config", nil))
	var dto configDTO
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dto))

	dto.ReclarifyThreshold = dto.SimilarityThreshold
	body, err := json.Marshal(dto)
	require.NoError(t, err)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/chat-config", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	h := testServer(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNewServerDefaultsMetricsRegistry(t *testing.T) {
	f := facade.New(session.NewManager(config.NewStore(config.Default()), clock.New()), nil, config.NewStore(config.Default()), nil)
	s := NewServer(f, nil, nil, nil)
	assert.NotNil(t, s.metrics)
	assert.NotNil(t, s.gatherer)
}
