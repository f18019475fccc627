package textstat

import (
	"regexp"
	"strconv"
	"strings"
)

// Span is a character offset range [Start, End) into the text it was
// extracted from.
type Span struct {
	Start int
	End   int
}

// NumericToken is a number found in text, together with the span it occupies
// and a normalized form used for cross-passage verbatim matching.
type NumericToken struct {
	Raw        string
	Normalized string
	Span       Span
}

var numberPattern = regexp.MustCompile(`[$€£]?-?\d+(?:,\d{3})*(\.\d+)?%?`)

// ExtractNumbers finds every currency/percentage/integer/decimal token in
// text along with its character span.
func ExtractNumbers(text string) []NumericToken {
	matches := numberPattern.FindAllStringIndex(text, -1)
	out := make([]NumericToken, 0, len(matches))
	for _, m := range matches {
		raw := text[m[0]:m[1]]
		if !containsDigit(raw) {
			continue
		}
		out = append(out, NumericToken{
			Raw:        raw,
			Normalized: NormalizeNumber(raw),
			Span:       Span{Start: m[0], End: m[1]},
		})
	}
	return out
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

// NormalizeNumber strips currency symbols, thousands separators and a
// trailing percent sign so that "$20,000" and "20000" compare equal, and so
// "20%" and "20 %" compare equal.
func NormalizeNumber(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimPrefix(s, "£")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	s = strings.ReplaceAll(s, ",", "")
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return s
}

// AppearsVerbatim reports whether the normalized form of numTok appears,
// after the same normalization, anywhere in candidate.
func AppearsVerbatim(numTok NumericToken, candidate string) bool {
	for _, other := range ExtractNumbers(candidate) {
		if other.Normalized == numTok.Normalized {
			return true
		}
	}
	return false
}
