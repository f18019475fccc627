package textstat

import (
	"regexp"
	"strings"
)

// Spine is a single interrogative sub-intent detected in a question, e.g.
// "what" in "What balance is needed for Gold, and when does it apply?".
type Spine struct {
	Kind string
	Text string
}

var spinePatterns = []struct {
	kind    string
	pattern *regexp.Regexp
}{
	{"what", regexp.MustCompile(`(?i)\bwhat\b[^?.!]*`)},
	{"when", regexp.MustCompile(`(?i)\bwhen\b[^?.!]*`)},
	{"how_much", regexp.MustCompile(`(?i)\bhow much\b[^?.!]*`)},
	{"how_many", regexp.MustCompile(`(?i)\bhow many\b[^?.!]*`)},
	{"which", regexp.MustCompile(`(?i)\bwhich\b[^?.!]*`)},
	{"who", regexp.MustCompile(`(?i)\bwho\b[^?.!]*`)},
}

// ExtractSpine finds the question's interrogative sub-intents. A question
// with multiple interrogatives ("what ... and when ...") yields multiple
// spine entries, each of which the completeness heuristic checks for
// coverage in the answer.
func ExtractSpine(question string) []Spine {
	var out []Spine
	seen := make(map[string]bool)
	for _, sp := range spinePatterns {
		if loc := sp.pattern.FindStringIndex(question); loc != nil {
			if seen[sp.kind] {
				continue
			}
			seen[sp.kind] = true
			out = append(out, Spine{Kind: sp.kind, Text: strings.TrimSpace(question[loc[0]:loc[1]])})
		}
	}
	return out
}

// spineKeywords maps each interrogative kind to the answer-side vocabulary
// that counts as "addressing" it.
var spineKeywords = map[string][]string{
	"what":     nil, // satisfied by any non-trivial answer content
	"when":     {"on", "by", "before", "after", "date", "effective", "until", "starting"},
	"how_much": {"$", "amount", "balance", "total", "percent", "%"},
	"how_many": {"number", "count", "total"},
	"which":    nil,
	"who":      {"you", "customer", "account", "holder"},
}

// AddressedBy reports whether the answer text plausibly addresses this
// spine entry: a numeric/date/amount spine must find supporting vocabulary
// or an extracted entity/number of the matching flavor; an open-ended
// what/which spine is considered addressed whenever the answer is
// non-empty, since detecting "aboutness" beyond that needs real semantics
// that live in the faithfulness metric, not here.
func (s Spine) AddressedBy(answer string) bool {
	lower := strings.ToLower(answer)
	switch s.Kind {
	case "when":
		return len(datePattern.FindAllString(answer, 1)) > 0 || containsAny(lower, spineKeywords["when"])
	case "how_much":
		return len(ExtractNumbers(answer)) > 0 || containsAny(lower, spineKeywords["how_much"])
	case "how_many":
		return len(ExtractNumbers(answer)) > 0 || containsAny(lower, spineKeywords["how_many"])
	default:
		return strings.TrimSpace(answer) != ""
	}
}

// containsAny reports whether haystack contains any needle: word needles
// must appear as whole tokens (so "on" does not match "everyone"), while
// symbol needles such as "$" and "%" match anywhere.
func containsAny(haystack string, needles []string) bool {
	words := make(map[string]bool)
	for _, w := range Tokenize(haystack) {
		words[w] = true
	}
	for _, n := range needles {
		if words[n] || (!wordPattern.MatchString(n) && strings.Contains(haystack, n)) {
			return true
		}
	}
	return false
}
