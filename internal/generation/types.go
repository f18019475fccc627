// Package generation implements the answer generator: it builds a grounded
// prompt from retrieved passages, invokes the LLM for a strict structured
// response, and computes the grounding metrics and abstention policy
// locally. The model's self-reported quality is never trusted on its own.
package generation

import (
	"errors"

	"github.com/ragcore/ragcore/pkg/textstat"
)

// ErrBackendFailure reports that the LLM stayed unavailable after the
// collaborator's own retry policy.
var ErrBackendFailure = errors.New("generation: backend failure")

// ErrMalformed reports that the LLM output did not conform to the strict
// schema after one repair attempt.
var ErrMalformed = errors.New("generation: structured response malformed")

// Kind enumerates an AnswerArtifact's answer kind.
type Kind string

const (
	KindDirect        Kind = "direct"
	KindClarification Kind = "clarification"
	KindAbstain       Kind = "abstain"
)

// SupportedTerm is one grounding span: a content term from the answer text,
// its IDF weight, and the character span(s) it occupies in the answer.
type SupportedTerm struct {
	Term     string
	IDF      float64
	Spans    []textstat.Span
	Grounded bool
}

// EntitySpan is a recognized named entity in the answer text together with
// whether a cited passage supports it.
type EntitySpan struct {
	Text     string
	Type     textstat.EntityType
	Spans    []textstat.Span
	Grounded bool
}

// SentencePrecision is the fraction of one sentence's content tokens that
// are supported by a cited passage.
type SentencePrecision struct {
	Sentence  string
	Precision float64
}

// EntityCoverage reports supported/total entity ratios, overall and broken
// down by entity type.
type EntityCoverage struct {
	Overall float64
	ByType  map[textstat.EntityType]float64
}

// AnswerArtifact is the structured result of one generator call.
// Invariant: an abstention or clarification artifact carries
// Faithfulness/Completeness as NA (IsNA() true); a direct artifact always
// carries numeric values for both.
type AnswerArtifact struct {
	Text                  string
	Kind                  Kind
	Abstained             bool
	Faithfulness          NAFloat
	Completeness          NAFloat
	MissingInformation    []string
	ReasoningNotes        string
	ClarificationText     string
	SupportedTerms        []SupportedTerm
	Entities              []EntitySpan
	EntityCoverage        EntityCoverage
	UnsupportedNumbers    []string
	QAAlignment           float64
	SentencePrecision     []SentencePrecision
	CitedPassageIDs       []string
}
