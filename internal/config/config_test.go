package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragcore/ragcore/internal/config"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, config.Validate(config.Default()))
}

func TestLoadEmptyYAMLAppliesDefaults(t *testing.T) {
	cfg, err := config.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

// The re-clarification threshold must sit strictly below the similarity
// threshold, or the router could oscillate at the boundary; such configs
// are rejected at load.
func TestReclarifyMustBeBelowSimilarity(t *testing.T) {
	cfg := config.Default()
	cfg.ReclarifyThreshold = cfg.SimilarityThreshold
	err := config.Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalid)

	cfg.ReclarifyThreshold = cfg.SimilarityThreshold + 0.1
	assert.ErrorIs(t, config.Validate(cfg), config.ErrInvalid)
}

func TestWindowKMustBeAtLeastOne(t *testing.T) {
	cfg := config.Default()
	cfg.WindowK = 0
	assert.ErrorIs(t, config.Validate(cfg), config.ErrInvalid)
}

func TestNegativeMaxClarifyRejected(t *testing.T) {
	cfg := config.Default()
	cfg.MaxClarify = -1
	assert.ErrorIs(t, config.Validate(cfg), config.ErrInvalid)
}

func TestUnrecognizedEnumsRejected(t *testing.T) {
	cfg := config.Default()
	cfg.RetrievalMethod = "keyword_only"
	assert.ErrorIs(t, config.Validate(cfg), config.ErrInvalid)

	cfg = config.Default()
	cfg.RoutingStrategy = "heuristic"
	assert.ErrorIs(t, config.Validate(cfg), config.ErrInvalid)

	cfg = config.Default()
	cfg.Hybrid.DenseNormalization = "zscore"
	assert.ErrorIs(t, config.Validate(cfg), config.ErrInvalid)
}

func TestNonPositiveHybridPoolSizesRejected(t *testing.T) {
	cfg := config.Default()
	cfg.Hybrid.KEmbed = 0
	assert.ErrorIs(t, config.Validate(cfg), config.ErrInvalid)

	cfg = config.Default()
	cfg.Hybrid.RRFConstant = 0
	assert.ErrorIs(t, config.Validate(cfg), config.ErrInvalid)
}

func TestStoreUpdateRejectsInvalidWithoutMutatingState(t *testing.T) {
	s := config.NewStore(config.Default())
	before := s.Get()

	bad := config.Default()
	bad.ReclarifyThreshold = bad.SimilarityThreshold

	err := s.Update(bad)
	require.Error(t, err)
	assert.Same(t, before, s.Get())
}

func TestStoreUpdateInvokesOnUpdateCallbacks(t *testing.T) {
	s := config.NewStore(config.Default())
	called := false
	s.OnUpdate(func(*config.Config) { called = true })

	next := config.Default()
	next.SimilarityThreshold = 0.8
	require.NoError(t, s.Update(next))
	assert.True(t, called)
	assert.Equal(t, 0.8, s.Get().SimilarityThreshold)
}
