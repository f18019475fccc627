package httpapi

import (
	"net/http"
	"time"

	"github.com/ragcore/ragcore/internal/session"
)

type createSessionRequest struct {
	ConversationHistory []chatTurnDTO `json:"conversation_history,omitempty"`
}

type sessionResponse struct {
	SessionID     string `json:"session_id"`
	CreatedAt     string `json:"created_at"`
	RemainingTime int64  `json:"remaining_time"`
	TimeoutMin    int64  `json:"timeout_minutes"`
}

func sessionResponseFrom(rec session.Record, now time.Time) sessionResponse {
	return sessionResponse{
		SessionID:     rec.ID,
		CreatedAt:     rec.CreatedAt.UTC().Format(time.RFC3339),
		RemainingTime: int64(rec.RemainingTime(now).Seconds()),
		TimeoutMin:    int64(rec.Timeout.Minutes()),
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Kind: "MalformedRequest", Message: err.Error()})
			return
		}
	}

	seed := turnsFromDTO(req.ConversationHistory, time.Now())
	rec, err := s.facade.CreateSession(r.Context(), seed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponseFrom(rec, rec.LastActivity))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.facade.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponseFrom(rec, time.Now()))
}

type extendSessionResponse struct {
	Message       string `json:"message"`
	RemainingTime int64  `json:"remaining_time"`
}

func (s *Server) handleExtendSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	remaining, err := s.facade.ExtendSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, extendSessionResponse{
		Message:       "session extended",
		RemainingTime: int64(remaining.Seconds()),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.facade.EndSession(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// sessionDiagnosticsResponse is the last-run retrieval snapshot read
// endpoint's shape: the per-session diagnostics the router recorded on its
// most recent RETRIEVE.
type sessionDiagnosticsResponse struct {
	SessionID     string  `json:"session_id"`
	ClarifyCount  int     `json:"clarify_count"`
	ChunkCount    int     `json:"chunk_count"`
	AvgFusedScore float64 `json:"avg_fused_score"`
	MinFusedScore float64 `json:"min_fused_score"`
	MaxFusedScore float64 `json:"max_fused_score"`
	TopDenseScore float64 `json:"top_dense_score"`
	DenseDegraded bool    `json:"dense_degraded"`
}

func (s *Server) handleSessionDiagnostics(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.facade.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	snap := rec.LastRetrieval
	writeJSON(w, http.StatusOK, sessionDiagnosticsResponse{
		SessionID:     rec.ID,
		ClarifyCount:  rec.ClarifyCount,
		ChunkCount:    snap.ChunkCount,
		AvgFusedScore: snap.AvgFusedScore,
		MinFusedScore: snap.MinFusedScore,
		MaxFusedScore: snap.MaxFusedScore,
		TopDenseScore: snap.TopDenseScore,
		DenseDegraded: snap.DenseDegraded,
	})
}
