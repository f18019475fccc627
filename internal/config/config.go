// Package config defines the single, explicit configuration record for the
// retriever and router: an enumerated set of recognized options, validated
// once at load time, never read by string key on the hot path.
package config

import (
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// RetrievalMethod selects whether the router uses hybrid fusion or dense
// search alone.
type RetrievalMethod string

const (
	RetrievalMethodSemantic RetrievalMethod = "semantic"
	RetrievalMethodHybrid   RetrievalMethod = "hybrid"
)

// RoutingStrategy selects the router's decision policy.
type RoutingStrategy string

const (
	RoutingStrategyIntelligent RoutingStrategy = "intelligent"
	RoutingStrategySimple      RoutingStrategy = "simple"
)

// DenseNormalization selects how raw dense-KNN scores are rescaled for the
// per-passage diagnostic score.
type DenseNormalization string

const (
	// DenseNormalizationMinMax rescales the dense candidate pool's scores
	// to span [0,1]. The default.
	DenseNormalizationMinMax DenseNormalization = "minmax"
	// DenseNormalizationNone passes through the adapter's already-clipped
	// [0,1] cosine similarity unchanged.
	DenseNormalizationNone DenseNormalization = "none"
)

// HybridConfig holds the hybrid retriever's per-signal pool sizes and the
// RRF damping constant.
type HybridConfig struct {
	KEmbed             int                 `yaml:"k_embed"`
	KBM25Chunk         int                 `yaml:"k_bm25_chunk"`
	KBM25MetaDocs      int                 `yaml:"k_bm25_meta_docs"`
	KFinal             int                 `yaml:"k_final"`
	KRRF               int                 `yaml:"k_rrf"`
	RRFConstant        float64             `yaml:"rrf_c"`
	DenseNormalization DenseNormalization  `yaml:"dense_normalization"`
}

// HeuristicWeights are the fixed weights for the additive heuristic
// adjustment blended onto the fused score: authority prior, currency and
// number presence, and freshness decay.
type HeuristicWeights struct {
	Authority float64 `yaml:"authority"`
	Currency  float64 `yaml:"currency"`
	Number    float64 `yaml:"number"`
	Freshness float64 `yaml:"freshness"`
}

// Config is the full, validated configuration record consumed by the
// router, retriever, session manager, and generator.
type Config struct {
	RetrievalMethod     RetrievalMethod   `yaml:"retrieval_method"`
	RoutingStrategy     RoutingStrategy   `yaml:"routing_strategy"`
	RetrievalTopK       int               `yaml:"retrieval_top_k"`
	SimilarityThreshold float64           `yaml:"similarity_threshold"`
	MaxClarify          int               `yaml:"max_clarify"`
	ReclarifyThreshold  float64           `yaml:"reclarify_threshold"`
	WindowK             int               `yaml:"window_k"`
	Hybrid              HybridConfig      `yaml:"hybrid_config"`
	Heuristics          HeuristicWeights  `yaml:"heuristic_weights"`

	SessionTimeoutSeconds int `yaml:"session_timeout_seconds"`
	SweepIntervalSeconds  int `yaml:"sweep_interval_seconds"`

	LLMTimeoutSeconds     int `yaml:"llm_timeout_seconds"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	StoreTimeoutSeconds   int `yaml:"store_timeout_seconds"`
}

// ErrInvalid reports a configuration rejected at load or update time.
var ErrInvalid = errors.New("configuration invalid")

// Default returns a Config with the documented defaults applied.
func Default() *Config {
	return &Config{
		RetrievalMethod:     RetrievalMethodHybrid,
		RoutingStrategy:     RoutingStrategyIntelligent,
		RetrievalTopK:       5,
		SimilarityThreshold: 0.75,
		MaxClarify:          2,
		ReclarifyThreshold:  0.55,
		WindowK:             8,
		Hybrid: HybridConfig{
			KEmbed:             20,
			KBM25Chunk:         20,
			KBM25MetaDocs:      10,
			KFinal:             5,
			KRRF:               40,
			RRFConstant:        60,
			DenseNormalization: DenseNormalizationMinMax,
		},
		Heuristics: HeuristicWeights{
			Authority: 0.15,
			Currency:  0.05,
			Number:    0.05,
			Freshness: 0.05,
		},
		SessionTimeoutSeconds: 30 * 60,
		SweepIntervalSeconds:  60,
		LLMTimeoutSeconds:     30,
		RequestTimeoutSeconds: 60,
		StoreTimeoutSeconds:   10,
	}
}

// Load parses YAML configuration bytes over Default(), so fields absent from
// the YAML keep their default values (a field set explicitly to zero stays
// zero), then validates the result.
func Load(data []byte) (*Config, error) {
	cfg := Default()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects malformed configurations: reclarify_threshold >=
// similarity_threshold, negative/zero k values, window_k < 1, and
// unrecognized enum values.
func Validate(c *Config) error {
	var problems []string

	if c.RetrievalMethod != RetrievalMethodSemantic && c.RetrievalMethod != RetrievalMethodHybrid {
		problems = append(problems, "retrieval_method must be 'semantic' or 'hybrid'")
	}
	if c.RoutingStrategy != RoutingStrategyIntelligent && c.RoutingStrategy != RoutingStrategySimple {
		problems = append(problems, "routing_strategy must be 'intelligent' or 'simple'")
	}
	if c.ReclarifyThreshold >= c.SimilarityThreshold {
		problems = append(problems, "reclarify_threshold must be strictly less than similarity_threshold")
	}
	if c.WindowK < 1 {
		problems = append(problems, "window_k must be >= 1")
	}
	if c.MaxClarify < 0 {
		problems = append(problems, "max_clarify must be >= 0")
	}
	if c.RetrievalTopK < 1 {
		problems = append(problems, "retrieval_top_k must be >= 1")
	}
	for name, v := range map[string]int{
		"hybrid_config.k_embed":          c.Hybrid.KEmbed,
		"hybrid_config.k_bm25_chunk":     c.Hybrid.KBM25Chunk,
		"hybrid_config.k_bm25_meta_docs": c.Hybrid.KBM25MetaDocs,
		"hybrid_config.k_final":          c.Hybrid.KFinal,
		"hybrid_config.k_rrf":            c.Hybrid.KRRF,
	} {
		if v < 1 {
			problems = append(problems, name+" must be >= 1")
		}
	}
	if c.Hybrid.RRFConstant <= 0 {
		problems = append(problems, "hybrid_config.rrf_c must be > 0")
	}
	if c.Hybrid.DenseNormalization != DenseNormalizationMinMax && c.Hybrid.DenseNormalization != DenseNormalizationNone {
		problems = append(problems, "hybrid_config.dense_normalization must be 'minmax' or 'none'")
	}
	if c.SessionTimeoutSeconds < 1 {
		problems = append(problems, "session_timeout_seconds must be >= 1")
	}
	if c.SweepIntervalSeconds < 1 {
		problems = append(problems, "sweep_interval_seconds must be >= 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalid, problems)
	}
	return nil
}

// Store holds a read-mostly, hot-swappable Config behind a RWMutex; updates
// take the write lock and notify registered callbacks so derived caches can
// invalidate themselves.
type Store struct {
	mu       sync.RWMutex
	cfg      *Config
	onUpdate []func(*Config)
}

// NewStore wraps cfg in a Store.
func NewStore(cfg *Config) *Store {
	return &Store{cfg: cfg}
}

// Get returns the current configuration. The returned pointer must not be
// mutated by callers; treat it as immutable once read.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// OnUpdate registers a callback invoked (under the write lock) whenever the
// configuration is replaced, so derived caches (e.g. router threshold
// caches) can invalidate themselves.
func (s *Store) OnUpdate(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = append(s.onUpdate, fn)
}

// Update validates and swaps in a new configuration, returning ErrInvalid
// without mutating state if validation fails.
func (s *Store) Update(cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	for _, fn := range s.onUpdate {
		fn(cfg)
	}
	return nil
}
