package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ragcore/ragcore/internal/config"
	"github.com/ragcore/ragcore/internal/facade"
	"github.com/ragcore/ragcore/internal/generation"
	"github.com/ragcore/ragcore/internal/retrieval"
	"github.com/ragcore/ragcore/internal/session"
	"github.com/ragcore/ragcore/internal/store"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// writeError maps err to the HTTP status its error kind prescribes and
// writes a {kind, message} body.
func writeError(w http.ResponseWriter, err error) {
	kind, status := classify(err)
	writeJSON(w, status, errorBody{Kind: kind, Message: err.Error()})
}

func classify(err error) (kind string, status int) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return "SessionNotFound", http.StatusNotFound
	case errors.Is(err, facade.ErrDeadlineExceeded):
		return "DeadlineExceeded", http.StatusGatewayTimeout
	case errors.Is(err, config.ErrInvalid):
		return "ConfigurationInvalid", http.StatusBadRequest
	case errors.Is(err, store.ErrBackendFailure), errors.Is(err, retrieval.ErrBackendFailure):
		return "RetrievalBackendFailure", http.StatusBadGateway
	case errors.Is(err, generation.ErrBackendFailure):
		return "GenerationBackendFailure", http.StatusBadGateway
	case errors.Is(err, generation.ErrMalformed):
		return "StructuredResponseMalformed", http.StatusBadGateway
	default:
		return "Internal", http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
