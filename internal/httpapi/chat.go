package httpapi

import (
	"net/http"
	"time"

	"github.com/ragcore/ragcore/internal/generation"
	"github.com/ragcore/ragcore/internal/session"
)

const generatedBy = "ragcore"

type chatTurnDTO struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func turnsFromDTO(turns []chatTurnDTO, now time.Time) []session.Turn {
	if len(turns) == 0 {
		return nil
	}
	out := make([]session.Turn, 0, len(turns))
	for _, t := range turns {
		out = append(out, session.Turn{
			Role:      session.Role(t.Role),
			Text:      t.Text,
			Timestamp: now,
		})
	}
	return out
}

type chatRequest struct {
	Message             string        `json:"message"`
	SessionID           string        `json:"session_id"`
	ConversationHistory []chatTurnDTO `json:"conversation_history,omitempty"`
}

type chatMetrics struct {
	Kind               string   `json:"kind"`
	RouteDecision      string   `json:"route_decision,omitempty"`
	Abstained          bool     `json:"abstained"`
	Faithfulness       *float64 `json:"faithfulness,omitempty"`
	Completeness       *float64 `json:"completeness,omitempty"`
	QAAlignment        float64  `json:"qa_alignment"`
	MissingInformation []string `json:"missing_information,omitempty"`
}

type chatResponse struct {
	Answer      string      `json:"answer"`
	Sources     []string    `json:"sources"`
	Metrics     chatMetrics `json:"metrics"`
	GeneratedBy string      `json:"generated_by"`
}

func chatResponseFrom(artifact *generation.AnswerArtifact, routeDecision string) chatResponse {
	text := artifact.Text
	if artifact.Kind == generation.KindClarification {
		text = artifact.ClarificationText
	}

	m := chatMetrics{
		Kind:               string(artifact.Kind),
		RouteDecision:      routeDecision,
		Abstained:          artifact.Abstained,
		QAAlignment:        artifact.QAAlignment,
		MissingInformation: artifact.MissingInformation,
	}
	if !artifact.Faithfulness.IsNA() {
		v := artifact.Faithfulness.Value
		m.Faithfulness = &v
	}
	if !artifact.Completeness.IsNA() {
		v := artifact.Completeness.Value
		m.Completeness = &v
	}

	return chatResponse{
		Answer:      text,
		Sources:     artifact.CitedPassageIDs,
		Metrics:     m,
		GeneratedBy: generatedBy,
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: "MalformedRequest", Message: err.Error()})
		return
	}

	result, err := s.facade.Ask(r.Context(), req.SessionID, req.Message, nil)
	if err != nil {
		outcome := "error"
		if isSessionNotFound(err) {
			s.metrics.ObserveRequest("expired", time.Since(start))
			writeJSON(w, http.StatusGone, errorBody{Kind: "SessionNotFound", Message: err.Error()})
			return
		}
		s.metrics.ObserveRequest(outcome, time.Since(start))
		writeError(w, err)
		return
	}

	s.metrics.ObserveRequest("ok", time.Since(start))
	s.metrics.ObserveAnswerKind(string(result.Artifact.Kind))
	writeJSON(w, http.StatusOK, chatResponseFrom(result.Artifact, string(result.Trace.RouteDecision)))
}

func isSessionNotFound(err error) bool {
	kind, _ := classify(err)
	return kind == "SessionNotFound"
}
