package router

import (
	"context"
	"strings"

	"github.com/ragcore/ragcore/internal/llmclient"
	"github.com/ragcore/ragcore/internal/session"
)

const rephraseSystemPrompt = `Given the conversation history, rewrite the user's latest message as a
single, fully self-contained question: resolve pronouns and topic
references using the history. Respond with only the rewritten question and
nothing else: no preamble, no quotation marks.`

// ingest implements the INGEST node: it decides whether utterance is a
// clarification response to the immediately prior assistant clarification
// (merging it with the pending question) or otherwise attempts an
// LLM-backed rephrase to resolve pronouns/topic anchors against history.
// If the LLM is unavailable, rephrasing is skipped rather than failing the
// request.
func (r *Router) ingest(ctx context.Context, rec session.Record, utterance string) (processed string, rephrased, merged bool, summary string) {
	if rec.PendingClarification != "" {
		processed = mergeClarificationResponse(rec.PendingQuestion, utterance)
		return processed, false, true, "merged clarification response with pending question"
	}

	if len(rec.History) == 0 {
		return utterance, false, false, "no history to rephrase against"
	}

	rephrasedText, err := r.rephrase(ctx, rec, utterance)
	if err != nil {
		return utterance, false, false, "rephrase skipped: " + err.Error()
	}
	return rephrasedText, true, false, "rephrased against prior turns"
}

// mergeClarificationResponse combines the original pending question with
// the user's clarification reply into a single resolved question.
func mergeClarificationResponse(pending, response string) string {
	pending = strings.TrimSpace(pending)
	response = strings.TrimSpace(response)
	if pending == "" {
		return response
	}
	if response == "" {
		return pending
	}
	return pending + " - " + response
}

// rephrase delegates to the LLM collaborator's strict "return only the
// rephrased question" contract.
func (r *Router) rephrase(ctx context.Context, rec session.Record, utterance string) (string, error) {
	var history strings.Builder
	for _, t := range rec.History {
		history.WriteString(string(t.Role))
		history.WriteString(": ")
		history.WriteString(t.Text)
		history.WriteString("\n")
	}
	history.WriteString("user: ")
	history.WriteString(utterance)

	out, err := r.llm.Chat(ctx, rephraseSystemPrompt, history.String(), llmclient.ChatOptions{})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return utterance, nil
	}
	return out, nil
}
