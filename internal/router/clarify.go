package router

import (
	"context"
	"fmt"

	"github.com/ragcore/ragcore/internal/document"
	"github.com/ragcore/ragcore/internal/generation"
	"github.com/ragcore/ragcore/internal/retrieval"
	"github.com/ragcore/ragcore/internal/session"
)

// maxClarifyTopics bounds how many candidate topics the fallback synthesis
// names in its clarifying question.
const maxClarifyTopics = 2

// clarify implements the CLARIFY node: it synthesizes a follow-up question,
// preferring the generator's own clarification field from a bounded prior
// call, falling back to a diagnostics-driven synthesis naming the
// candidate topics detected among the retrieved passages. It increments
// the clarification counter, appends the assistant turn, and records the
// pending question/clarification pair for the next INGEST's merge
// decision.
func (r *Router) clarify(ctx context.Context, h *session.Handle, processed string, passages []retrieval.Passage) *generation.AnswerArtifact {
	clarificationText := r.preferredClarification(ctx, processed, passages)
	if clarificationText == "" {
		clarificationText = synthesizeFallbackClarification(passages)
	}

	h.IncrementClarifyCount()
	h.SetPending(processed, clarificationText)
	h.AppendTurn(session.Turn{
		Role:      session.RoleAssistant,
		Text:      clarificationText,
		Timestamp: h.Now(),
	})

	return &generation.AnswerArtifact{
		Kind:              generation.KindClarification,
		Abstained:         false,
		ClarificationText: clarificationText,
		Text:              clarificationText,
		Faithfulness:      generation.NA(),
		Completeness:      generation.NA(),
		ReasoningNotes:    "awaiting clarification before answering",
	}
}

// preferredClarification asks the generator, bounded to this one call, for
// a clarification-kind response over the (ambiguous) retrieved passages. A
// generator error or a non-clarification response yields "" so the caller
// falls back to diagnostics-driven synthesis.
func (r *Router) preferredClarification(ctx context.Context, processed string, passages []retrieval.Passage) string {
	if len(passages) == 0 {
		return ""
	}
	artifact, err := r.generator.Generate(ctx, processed, passages, nil)
	if err != nil || artifact == nil {
		return ""
	}
	if artifact.Kind != generation.KindClarification {
		return ""
	}
	return artifact.ClarificationText
}

// synthesizeFallbackClarification names up to maxClarifyTopics distinct
// document topics detected among the retrieved passages, e.g. "Did you
// mean Preferred Rewards, or Preferred Deposits?".
func synthesizeFallbackClarification(passages []retrieval.Passage) string {
	topics := distinctTopics(passages, maxClarifyTopics)
	switch len(topics) {
	case 0:
		return "Could you clarify your question?"
	case 1:
		return fmt.Sprintf("Could you clarify what you'd like to know about %s?", topics[0])
	default:
		return fmt.Sprintf("Did you mean %s, or %s?", topics[0], topics[1])
	}
}

func distinctTopics(passages []retrieval.Passage, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range passages {
		label := topicLabel(p.Doc)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func topicLabel(doc document.Document) string {
	if len(doc.ProductEntities) > 0 {
		return doc.ProductEntities[0]
	}
	if len(doc.Categories) > 0 {
		return doc.Categories[0]
	}
	return string(doc.Kind)
}
