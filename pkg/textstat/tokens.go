// Package textstat provides the lexical analysis primitives the grounding
// metrics in the answer generator are built on: tokenization, stopword
// filtering, IDF weighting, TF-IDF cosine similarity, and light-weight
// numeric/entity extraction. It deliberately avoids full NLP dependencies;
// the regex/heuristic surface here is all the grounding math needs.
package textstat

import (
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`[A-Za-z0-9']+`)

// stopWords is a small, fixed English stopword set. It intentionally stays
// short: the grounding metrics only need "drop function words", not a
// linguistically complete list.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "to": {}, "of": {}, "in": {}, "on": {},
	"for": {}, "with": {}, "as": {}, "by": {}, "at": {}, "from": {}, "and": {},
	"or": {}, "but": {}, "if": {}, "then": {}, "than": {}, "that": {},
	"this": {}, "these": {}, "those": {}, "it": {}, "its": {}, "do": {},
	"does": {}, "did": {}, "can": {}, "could": {}, "will": {}, "would": {},
	"should": {}, "what": {}, "which": {}, "who": {}, "whom": {}, "how": {},
	"when": {}, "where": {}, "why": {}, "i": {}, "you": {}, "he": {}, "she": {},
	"we": {}, "they": {}, "my": {}, "your": {}, "his": {}, "her": {},
	"our": {}, "their": {},
}

// Tokenize lowercases text and splits it into alphanumeric word tokens,
// stripping punctuation. It is the shared tokenizer used by both IDF
// weighting and the question-spine coverage check so that term matching is
// consistent across the generator.
func Tokenize(text string) []string {
	matches := wordPattern.FindAllString(strings.ToLower(text), -1)
	return matches
}

// ContentTokens tokenizes text and drops stopwords, returning only the
// content-bearing terms used for faithfulness/precision scoring.
func ContentTokens(text string) []string {
	all := Tokenize(text)
	out := make([]string, 0, len(all))
	for _, t := range all {
		if IsStopWord(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// IsStopWord reports whether term (already lowercased) is a stopword.
func IsStopWord(term string) bool {
	_, ok := stopWords[term]
	return ok
}

// Sentences splits answer text into naive sentences on terminal punctuation.
// It is adequate for per-sentence precision scoring; it does not attempt to
// handle abbreviations or embedded quotations.
func Sentences(text string) []string {
	raw := regexp.MustCompile(`[.!?]+\s*`).Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
