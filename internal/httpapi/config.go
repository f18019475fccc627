package httpapi

import (
	"net/http"

	"github.com/ragcore/ragcore/internal/config"
)

type hybridConfigDTO struct {
	KEmbed        int `json:"k_embed"`
	KBM25Chunk    int `json:"k_bm25_chunk"`
	KBM25MetaDocs int `json:"k_bm25_meta_docs"`
	KFinal        int `json:"k_final"`
	KRRF          int `json:"k_rrf"`
}

type configDTO struct {
	RetrievalMethod     string          `json:"retrieval_method"`
	RoutingStrategy     string          `json:"routing_strategy"`
	RetrievalTopK       int             `json:"retrieval_top_k"`
	SimilarityThreshold float64         `json:"similarity_threshold"`
	MaxClarify          int             `json:"max_clarify"`
	ReclarifyThreshold  float64         `json:"reclarify_threshold"`
	WindowK             int             `json:"window_k"`
	HybridConfig        hybridConfigDTO `json:"hybrid_config"`
}

func configDTOFrom(c *config.Config) configDTO {
	return configDTO{
		RetrievalMethod:     string(c.RetrievalMethod),
		RoutingStrategy:     string(c.RoutingStrategy),
		RetrievalTopK:       c.RetrievalTopK,
		SimilarityThreshold: c.SimilarityThreshold,
		MaxClarify:          c.MaxClarify,
		ReclarifyThreshold:  c.ReclarifyThreshold,
		WindowK:             c.WindowK,
		HybridConfig: hybridConfigDTO{
			KEmbed:        c.Hybrid.KEmbed,
			KBM25Chunk:    c.Hybrid.KBM25Chunk,
			KBM25MetaDocs: c.Hybrid.KBM25MetaDocs,
			KFinal:        c.Hybrid.KFinal,
			KRRF:          c.Hybrid.KRRF,
		},
	}
}

// applyTo copies the DTO's fields onto a clone of base, preserving fields
// the HTTP surface doesn't expose (heuristic weights, timeouts) rather than
// resetting them to zero on every partial write.
func (d configDTO) applyTo(base *config.Config) *config.Config {
	out := *base
	out.RetrievalMethod = config.RetrievalMethod(d.RetrievalMethod)
	out.RoutingStrategy = config.RoutingStrategy(d.RoutingStrategy)
	out.RetrievalTopK = d.RetrievalTopK
	out.SimilarityThreshold = d.SimilarityThreshold
	out.MaxClarify = d.MaxClarify
	out.ReclarifyThreshold = d.ReclarifyThreshold
	out.WindowK = d.WindowK
	out.Hybrid.KEmbed = d.HybridConfig.KEmbed
	out.Hybrid.KBM25Chunk = d.HybridConfig.KBM25Chunk
	out.Hybrid.KBM25MetaDocs = d.HybridConfig.KBM25MetaDocs
	out.Hybrid.KFinal = d.HybridConfig.KFinal
	out.Hybrid.KRRF = d.HybridConfig.KRRF
	return &out
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, configDTOFrom(s.facade.Config()))
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var dto configDTO
	if err := decodeJSON(r, &dto); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: "MalformedRequest", Message: err.Error()})
		return
	}

	next := dto.applyTo(s.facade.Config())
	if err := s.facade.UpdateConfig(next); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configDTOFrom(next))
}
