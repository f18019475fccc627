package generation

import (
	"regexp"
	"strings"

	"github.com/ragcore/ragcore/pkg/textstat"
)

// computeSupportedTerms tokenizes answerText into content terms, weights
// each by IDF against the pool of retrieved passage texts, and marks a term
// supported iff it appears in at least one of citedTexts. Returns the
// per-term detail plus the overall ratio of supported IDF mass to total
// IDF mass, clipped to [0,1].
func computeSupportedTerms(answerText string, citedTexts, poolTexts []string) ([]SupportedTerm, float64) {
	corpus := textstat.NewCorpus(poolTexts)
	citedCorpus := textstat.NewCorpus(citedTexts)

	tokens := textstat.ContentTokens(answerText)
	seen := make(map[string]bool, len(tokens))

	var (
		terms          []SupportedTerm
		sumAll, sumSup float64
	)
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true

		idf := corpus.IDF(tok)
		grounded := citedCorpus.AppearsInAny(tok)
		terms = append(terms, SupportedTerm{
			Term:     tok,
			IDF:      idf,
			Spans:    findTermSpans(answerText, tok),
			Grounded: grounded,
		})
		sumAll += idf
		if grounded {
			sumSup += idf
		}
	}

	if sumAll == 0 {
		return terms, 0
	}
	ratio := sumSup / sumAll
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return terms, ratio
}

// computeEntityGrounding recognizes entities in answerText and marks each
// supported iff its surface form appears in at least one of citedTexts,
// reporting coverage overall and broken down by entity type.
func computeEntityGrounding(answerText string, citedTexts, knownProducts, knownOrgs []string) ([]EntitySpan, EntityCoverage) {
	entities := textstat.ExtractEntities(answerText, knownProducts, knownOrgs)

	cov := EntityCoverage{ByType: make(map[textstat.EntityType]float64)}
	typeTotal := make(map[textstat.EntityType]int)
	typeSupported := make(map[textstat.EntityType]int)

	out := make([]EntitySpan, 0, len(entities))
	var total, supported int
	for _, e := range entities {
		grounded := appearsInAny(e.Text, citedTexts)
		out = append(out, EntitySpan{
			Text:     e.Text,
			Type:     e.Type,
			Spans:    []textstat.Span{e.Span},
			Grounded: grounded,
		})
		total++
		typeTotal[e.Type]++
		if grounded {
			supported++
			typeSupported[e.Type]++
		}
	}

	if total > 0 {
		cov.Overall = float64(supported) / float64(total)
	} else {
		cov.Overall = 1 // vacuously fully covered: no entities to ground
	}
	for t, n := range typeTotal {
		if n == 0 {
			continue
		}
		cov.ByType[t] = float64(typeSupported[t]) / float64(n)
	}
	return out, cov
}

// computeNumericFidelity returns every number in answerText that does not
// appear, after normalization, in any of citedTexts.
func computeNumericFidelity(answerText string, citedTexts []string) []string {
	var unsupported []string
	for _, numTok := range textstat.ExtractNumbers(answerText) {
		found := false
		for _, passage := range citedTexts {
			if textstat.AppearsVerbatim(numTok, passage) {
				found = true
				break
			}
		}
		if !found {
			unsupported = append(unsupported, numTok.Raw)
		}
	}
	return unsupported
}

// computeQAAlignment reports the cosine similarity of the TF-IDF vectors of
// question and answer, a diagnostic only; it never feeds the abstention
// decision.
func computeQAAlignment(question, answer string) float64 {
	corpus := textstat.NewCorpus([]string{question, answer})
	qVec := textstat.TFIDFVector(question, corpus.IDF)
	aVec := textstat.TFIDFVector(answer, corpus.IDF)
	return textstat.CosineSimilarity(qVec, aVec)
}

// computeSentencePrecision reports, per sentence of answerText, the
// fraction of its content tokens that are supported by at least one of
// citedTexts.
func computeSentencePrecision(answerText string, citedTexts []string) []SentencePrecision {
	citedCorpus := textstat.NewCorpus(citedTexts)
	var out []SentencePrecision
	for _, sentence := range textstat.Sentences(answerText) {
		tokens := textstat.ContentTokens(sentence)
		if len(tokens) == 0 {
			out = append(out, SentencePrecision{Sentence: sentence, Precision: 1})
			continue
		}
		supported := 0
		for _, tok := range tokens {
			if citedCorpus.AppearsInAny(tok) {
				supported++
			}
		}
		out = append(out, SentencePrecision{
			Sentence:  sentence,
			Precision: float64(supported) / float64(len(tokens)),
		})
	}
	return out
}

// computeCompleteness extracts the question's interrogative spine and
// reports the fraction of its sub-intents the answer addresses.
func computeCompleteness(question, answer string) float64 {
	spines := textstat.ExtractSpine(question)
	if len(spines) == 0 {
		return 1 // no sub-intents detected: vacuously complete
	}
	addressed := 0
	for _, sp := range spines {
		if sp.AddressedBy(answer) {
			addressed++
		}
	}
	return float64(addressed) / float64(len(spines))
}

func appearsInAny(surface string, texts []string) bool {
	lower := strings.ToLower(surface)
	for _, t := range texts {
		if strings.Contains(strings.ToLower(t), lower) {
			return true
		}
	}
	return false
}

func findTermSpans(text, term string) []textstat.Span {
	pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
	if err != nil {
		return nil
	}
	var spans []textstat.Span
	for _, m := range pattern.FindAllStringIndex(text, -1) {
		spans = append(spans, textstat.Span{Start: m[0], End: m[1]})
	}
	return spans
}
