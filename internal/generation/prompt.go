package generation

import (
	"fmt"
	"strings"

	"github.com/ragcore/ragcore/internal/retrieval"
	"github.com/ragcore/ragcore/internal/session"
)

const systemPrompt = `You are a grounded question-answering assistant. Answer ONLY using the
numbered passages provided. Every claim must be traceable to a cited
passage. If the passages do not contain enough evidence, set answer_kind to
"abstain" and explain what is missing in missing_information. If the
question is ambiguous between the retrieved topics, set answer_kind to
"clarification" and ask a short follow-up in clarification_question.

Respond with exactly one JSON object matching the required schema. Do not
include any text outside the JSON object.`

const repairReminder = `Your previous response did not conform to the required JSON schema.
Respond again with exactly one JSON object matching the schema. No
surrounding prose, no markdown fences.`

// buildUserPrompt renders the utterance, the ranked passages with stable
// ordinal identifiers, and a short history excerpt.
func buildUserPrompt(utterance string, passages []retrieval.Passage, history []session.Turn) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "[%s] %s\n", t.Role, t.Text)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question: %s\n\n", utterance)
	b.WriteString("Passages:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, p.Text)
	}

	return b.String()
}
