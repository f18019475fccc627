package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/ragcore/ragcore/internal/llmclient"
	"github.com/ragcore/ragcore/internal/retrieval"
	"github.com/ragcore/ragcore/internal/session"
)

// supportedTermFloor and entityCoverageFloor are the hard abstention
// floors applied to direct answers.
const (
	supportedTermFloor   = 0.5
	entityCoverageFloor  = 0.5
)

// Generator builds the grounded prompt, invokes the LLM for a strict
// structured response (one repair
// retry on malformed output), and computes grounding metrics and the
// abstention decision locally.
type Generator struct {
	llm llmclient.Client
}

// New constructs a Generator over the LLM collaborator.
func New(llm llmclient.Client) *Generator {
	return &Generator{llm: llm}
}

// Generate produces an AnswerArtifact for utterance given the retrieved
// passages and a rolling history excerpt.
func (g *Generator) Generate(ctx context.Context, utterance string, passages []retrieval.Passage, history []session.Turn) (*AnswerArtifact, error) {
	if len(passages) == 0 {
		return abstainArtifact("no passages were retrieved for this question"), nil
	}

	poolTexts := passageTexts(passages)
	resp, err := g.callWithRepair(ctx, utterance, passages, history)
	if err != nil {
		if errors.Is(err, ErrMalformed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrBackendFailure, err)
	}

	citedTexts, citedIDs := resolveCitations(resp.Citations, passages)

	supportedTerms, supportedRatio := computeSupportedTerms(resp.AnswerText, citedTexts, poolTexts)
	knownProducts := productEntities(passages)
	entitySpans, entityCoverage := computeEntityGrounding(resp.AnswerText, citedTexts, knownProducts, nil)
	unsupportedNumbers := computeNumericFidelity(resp.AnswerText, citedTexts)
	qaAlignment := computeQAAlignment(utterance, resp.AnswerText)
	sentencePrecision := computeSentencePrecision(resp.AnswerText, citedTexts)
	completeness := computeCompleteness(utterance, resp.AnswerText)

	finalKind, forcedReason := applyAbstentionPolicy(Kind(resp.AnswerKind), unsupportedNumbers, supportedRatio, entityCoverage.Overall)

	missing := resp.MissingInformation
	if finalKind == KindAbstain && len(missing) == 0 && forcedReason != "" {
		missing = []string{forcedReason}
	}

	notes := resp.ReasoningNotes
	if forcedReason != "" {
		notes = joinNotes(notes, forcedReason)
	}

	artifact := &AnswerArtifact{
		Text:               resp.AnswerText,
		Kind:               finalKind,
		Abstained:          finalKind == KindAbstain,
		MissingInformation: missing,
		ReasoningNotes:     notes,
		ClarificationText:  resp.ClarificationQuestion,
		SupportedTerms:     supportedTerms,
		Entities:           entitySpans,
		EntityCoverage:     entityCoverage,
		UnsupportedNumbers: unsupportedNumbers,
		QAAlignment:        qaAlignment,
		SentencePrecision:  sentencePrecision,
		CitedPassageIDs:    citedIDs,
	}

	if finalKind == KindDirect {
		artifact.Faithfulness = Of(supportedRatio)
		artifact.Completeness = Of(completeness)
	} else {
		artifact.Faithfulness = NA()
		artifact.Completeness = NA()
	}

	return artifact, nil
}

// callWithRepair invokes the LLM once, and on a malformed response retries
// exactly once with a "respond in the exact schema" system reminder
// appended. There is never a second repair attempt.
func (g *Generator) callWithRepair(ctx context.Context, utterance string, passages []retrieval.Passage, history []session.Turn) (*structuredResponse, error) {
	userPrompt := buildUserPrompt(utterance, passages, history)

	raw, err := g.llm.Chat(ctx, systemPrompt, userPrompt, llmclient.ChatOptions{
		JSONSchema: responseSchemaJSON,
		SchemaName: responseSchemaName,
	})
	if err != nil {
		return nil, err
	}
	resp, parseErr := parseStructured(raw)
	if parseErr == nil {
		return resp, nil
	}

	raw, err = g.llm.Chat(ctx, systemPrompt+"\n\n"+repairReminder, userPrompt, llmclient.ChatOptions{
		JSONSchema: responseSchemaJSON,
		SchemaName: responseSchemaName,
	})
	if err != nil {
		return nil, err
	}
	return parseStructured(raw)
}

// applyAbstentionPolicy evaluates the hard abstention rules in order,
// returning the final answer kind and, if a rule forced an abstention, a
// human-readable reason. The grounding floors apply to direct answers only:
// a clarification or declared abstention makes no claims to ground, and
// running the term-ratio floor against a short clarification question would
// force-abstain every clarification the model produces.
func applyAbstentionPolicy(declared Kind, unsupportedNumbers []string, supportedRatio, entityCoverage float64) (Kind, string) {
	switch declared {
	case KindClarification, KindAbstain:
		return declared, ""
	case KindDirect:
	default:
		return KindAbstain, "model declared an unrecognized answer kind"
	}
	if len(unsupportedNumbers) > 0 {
		return KindAbstain, "the answer contains numbers not verbatim supported by a cited passage"
	}
	if supportedRatio < supportedTermFloor {
		return KindAbstain, "fewer than half of the answer's content terms are supported by cited passages"
	}
	if entityCoverage < entityCoverageFloor {
		return KindAbstain, "fewer than half of the answer's entities are supported by cited passages"
	}
	return KindDirect, ""
}

func abstainArtifact(reason string) *AnswerArtifact {
	return &AnswerArtifact{
		Kind:               KindAbstain,
		Abstained:          true,
		MissingInformation: []string{reason},
		ReasoningNotes:     reason,
		Faithfulness:       NA(),
		Completeness:       NA(),
	}
}

// AbstainDueToFailure builds an abstention artifact carrying reason in its
// reasoning notes, for the router's ANSWER node to fall back on when the
// generator's backend fails or its output stays malformed after the repair
// retry: the caller gets an abstention explaining the failure, never a
// fabricated answer.
func AbstainDueToFailure(reason string) *AnswerArtifact {
	return abstainArtifact(reason)
}

func passageTexts(passages []retrieval.Passage) []string {
	out := make([]string, len(passages))
	for i, p := range passages {
		out[i] = p.Text
	}
	return out
}

func productEntities(passages []retrieval.Passage) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range passages {
		for _, e := range p.Doc.ProductEntities {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}

// resolveCitations translates 1-based passage ordinals into their chunk
// text and identifier, dropping any ordinal outside [1,len(passages)] so
// the invariant "every cited passage identifier MUST appear in the
// retrieval set" holds by construction.
func resolveCitations(ordinals []int, passages []retrieval.Passage) (texts []string, ids []string) {
	for _, o := range ordinals {
		if o < 1 || o > len(passages) {
			continue
		}
		p := passages[o-1]
		texts = append(texts, p.Text)
		ids = append(ids, p.Chunk.ID)
	}
	return texts, ids
}

func joinNotes(existing, addition string) string {
	if existing == "" {
		return addition
	}
	return existing + "; " + addition
}
