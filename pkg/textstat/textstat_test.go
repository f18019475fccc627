package textstat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize_LowercasesAndStripsPunctuation(t *testing.T) {
	got := Tokenize("Gold Tier requires $20,000 in combined balances!")
	assert.Equal(t, []string{"gold", "tier", "requires", "20", "000", "in", "combined", "balances"}, got)
}

func TestContentTokens_DropsStopWords(t *testing.T) {
	got := ContentTokens("What is the balance for the Gold account?")
	assert.Equal(t, []string{"balance", "gold", "account"}, got)
}

func TestIsStopWord(t *testing.T) {
	assert.True(t, IsStopWord("the"))
	assert.True(t, IsStopWord("when"))
	assert.False(t, IsStopWord("balance"))
}

func TestSentences_SplitsOnTerminalPunctuation(t *testing.T) {
	got := Sentences("Gold tier requires $20,000. Contact support for enrollment!  Is that clear?")
	assert.Equal(t, []string{
		"Gold tier requires $20,000",
		"Contact support for enrollment",
		"Is that clear",
	}, got)
}

func TestSentences_EmptyText(t *testing.T) {
	assert.Empty(t, Sentences(""))
}

func TestCorpus_IDF_RarerTermScoresHigher(t *testing.T) {
	corpus := NewCorpus([]string{
		"gold tier requires a balance",
		"platinum tier requires a balance",
		"the support team answers questions",
	})

	// "balance" appears in 2 of 3 docs, "support" in 1 of 3: support is rarer.
	assert.Greater(t, corpus.IDF("support"), corpus.IDF("balance"))
}

func TestCorpus_IDF_UnseenTermStillFinite(t *testing.T) {
	corpus := NewCorpus([]string{"gold tier requires a balance"})
	idf := corpus.IDF("nonexistent")
	assert.Greater(t, idf, 0.0)
	assert.False(t, isInf(idf))
}

func TestCorpus_AppearsInAny(t *testing.T) {
	corpus := NewCorpus([]string{"gold tier balance", "platinum tier balance"})
	assert.True(t, corpus.AppearsInAny("gold"))
	assert.False(t, corpus.AppearsInAny("silver"))
}

func isInf(f float64) bool {
	return f > 1e300 || f < -1e300
}

func TestExtractNumbers_FindsCurrencyPercentAndPlainIntegers(t *testing.T) {
	toks := ExtractNumbers("Gold tier needs $20,000, a 2.5% fee, and 3 documents.")
	var raws []string
	for _, tok := range toks {
		raws = append(raws, tok.Raw)
	}
	assert.Equal(t, []string{"$20,000", "2.5%", "3"}, raws)
}

func TestNormalizeNumber_StripsSymbolsAndSeparators(t *testing.T) {
	assert.Equal(t, "20000", NormalizeNumber("$20,000"))
	assert.Equal(t, "20", NormalizeNumber("20%"))
	assert.Equal(t, "20000", NormalizeNumber("20000"))
}

func TestAppearsVerbatim_MatchesAfterNormalization(t *testing.T) {
	toks := ExtractNumbers("The fee is $20,000.")
	require_len(t, toks, 1)
	assert.True(t, AppearsVerbatim(toks[0], "Customers pay 20000 for Gold tier."))
	assert.False(t, AppearsVerbatim(toks[0], "Customers pay 5000 for Gold tier."))
}

func require_len(t *testing.T, toks []NumericToken, n int) {
	t.Helper()
	if len(toks) != n {
		t.Fatalf("expected %d numeric tokens, got %d (%v)", n, len(toks), toks)
	}
}

func TestTFIDFVector_WeightsByFrequencyAndIDF(t *testing.T) {
	idf := func(term string) float64 {
		if term == "gold" {
			return 2.0
		}
		return 1.0
	}
	vec := TFIDFVector("gold gold tier", idf)
	assert.Equal(t, 4.0, vec["gold"])
	assert.Equal(t, 1.0, vec["tier"])
}

func TestCosineSimilarity_IdenticalVectorsScoreOne(t *testing.T) {
	a := map[string]float64{"gold": 2, "tier": 1}
	assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9)
}

func TestCosineSimilarity_DisjointVectorsScoreZero(t *testing.T) {
	a := map[string]float64{"gold": 1}
	b := map[string]float64{"platinum": 1}
	assert.Equal(t, 0.0, CosineSimilarity(a, b))
}

func TestCosineSimilarity_ZeroVectorScoresZero(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity(map[string]float64{}, map[string]float64{"gold": 1}))
}

func TestExtractEntities_RecognizesDatesAmountsAndOrgSuffix(t *testing.T) {
	entities := ExtractEntities("Acme Bank charged a $20 fee effective January 5, 2024.", nil, nil)

	var hasDate, hasAmount, hasOrg bool
	for _, e := range entities {
		switch e.Type {
		case EntityDate:
			hasDate = true
		case EntityAmount:
			hasAmount = true
		case EntityOrg:
			hasOrg = true
		}
	}
	assert.True(t, hasDate, "expected a date entity")
	assert.True(t, hasAmount, "expected an amount entity")
	assert.True(t, hasOrg, "expected an org entity from the Bank suffix")
}

func TestExtractEntities_KnownProductBiasesCapitalizedPhrase(t *testing.T) {
	entities := ExtractEntities("Gold Tier has no monthly fee.", []string{"Gold Tier"}, nil)

	var found bool
	for _, e := range entities {
		if e.Text == "Gold Tier" {
			found = true
			assert.Equal(t, EntityProduct, e.Type)
		}
	}
	assert.True(t, found, "expected Gold Tier to be recognized as a product entity")
}

func TestExtractSpine_MultipleInterrogatives(t *testing.T) {
	spine := ExtractSpine("What balance is needed for Gold, and when does it apply?")
	kinds := make([]string, len(spine))
	for i, s := range spine {
		kinds[i] = s.Kind
	}
	assert.Contains(t, kinds, "what")
	assert.Contains(t, kinds, "when")
}

func TestSpine_AddressedBy_WhenRequiresDateOrKeyword(t *testing.T) {
	s := Spine{Kind: "when"}
	assert.True(t, s.AddressedBy("It applies starting January 5, 2024."))
	assert.True(t, s.AddressedBy("It applies starting next month."))
	assert.False(t, s.AddressedBy("It applies to everyone."))
}

func TestSpine_AddressedBy_HowMuchRequiresNumberOrKeyword(t *testing.T) {
	s := Spine{Kind: "how_much"}
	assert.True(t, s.AddressedBy("The fee is $20."))
	assert.False(t, s.AddressedBy("The fee is unspecified."))
}

func TestSpine_AddressedBy_WhatSatisfiedByAnyNonEmptyAnswer(t *testing.T) {
	s := Spine{Kind: "what"}
	assert.True(t, s.AddressedBy("Gold tier."))
	assert.False(t, s.AddressedBy("   "))
}
