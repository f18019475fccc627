package generation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// NAFloat is a [0,1] metric that may instead be the literal "n/a" token,
// the shape faithfulness and completeness take for clarification and
// abstention artifacts.
type NAFloat struct {
	Value float64
	NA    bool
}

// NA returns the n/a sentinel value.
func NA() NAFloat { return NAFloat{NA: true} }

// Of wraps a numeric value.
func Of(v float64) NAFloat { return NAFloat{Value: v} }

// IsNA reports whether the metric is the n/a sentinel.
func (n NAFloat) IsNA() bool { return n.NA }

// UnmarshalJSON accepts either a JSON number or the string "n/a".
func (n *NAFloat) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if s == "n/a" || s == "N/A" {
			n.NA = true
			n.Value = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("generation: faithfulness/completeness: %q is neither a number nor n/a", s)
		}
		n.Value = f
		n.NA = false
		return nil
	}
	var f float64
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return err
	}
	n.Value = f
	n.NA = false
	return nil
}

// MarshalJSON renders the n/a sentinel as the literal string "n/a", and a
// numeric value as a JSON number.
func (n NAFloat) MarshalJSON() ([]byte, error) {
	if n.NA {
		return json.Marshal("n/a")
	}
	return json.Marshal(n.Value)
}

// structuredResponse is the strict schema the LLM must return. Any
// unrecognized field or missing required field fails the parse with
// ErrMalformed; there is no heuristic repair.
type structuredResponse struct {
	AnswerText            string   `json:"answer_text"`
	AnswerKind            string   `json:"answer_kind"`
	Abstained             bool     `json:"abstained"`
	Faithfulness          NAFloat  `json:"faithfulness"`
	Completeness          NAFloat  `json:"completeness"`
	MissingInformation    []string `json:"missing_information"`
	ReasoningNotes        string   `json:"reasoning_notes"`
	ClarificationQuestion string   `json:"clarification_question"`
	Citations             []int    `json:"citations"`
}

// responseSchemaJSON is the JSON Schema handed to the LLM collaborator's
// chat() call via ChatOptions.JSONSchema, constraining the provider (when
// it supports structured output, e.g. OpenAI's response_format:
// json_schema) to the exact shape parseStructured expects.
var responseSchemaJSON = []byte(`{
  "type": "object",
  "properties": {
    "answer_text": {"type": "string"},
    "answer_kind": {"type": "string", "enum": ["direct", "clarification", "abstain"]},
    "abstained": {"type": "boolean"},
    "faithfulness": {"type": ["number", "string"]},
    "completeness": {"type": ["number", "string"]},
    "missing_information": {"type": "array", "items": {"type": "string"}},
    "reasoning_notes": {"type": "string"},
    "clarification_question": {"type": "string"},
    "citations": {"type": "array", "items": {"type": "integer"}}
  },
  "required": ["answer_text", "answer_kind", "abstained", "faithfulness", "completeness", "missing_information", "reasoning_notes", "citations"],
  "additionalProperties": false
}`)

const responseSchemaName = "ragcore_answer_artifact"

// parseStructured strictly decodes raw as a structuredResponse, rejecting
// unknown fields, missing required fields, trailing data, and unrecognized
// answer_kind values.
func parseStructured(raw string) (*structuredResponse, error) {
	body := extractJSONObject(raw)
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	var resp structuredResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrMalformed)
	}
	var present map[string]json.RawMessage
	if err := json.Unmarshal(body, &present); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	for _, field := range []string{"answer_text", "answer_kind", "abstained", "faithfulness", "completeness", "missing_information", "reasoning_notes", "citations"} {
		if _, ok := present[field]; !ok {
			return nil, fmt.Errorf("%w: missing required field %q", ErrMalformed, field)
		}
	}
	switch Kind(resp.AnswerKind) {
	case KindDirect, KindClarification, KindAbstain:
	default:
		return nil, fmt.Errorf("%w: unrecognized answer_kind %q", ErrMalformed, resp.AnswerKind)
	}
	return &resp, nil
}

// extractJSONObject trims any leading/trailing prose a chat model adds
// around the JSON object despite instructions, returning the outermost
// {...} span. If no object delimiters are found, raw is returned unchanged
// so the decoder produces a clear parse error.
func extractJSONObject(raw string) []byte {
	start := bytes.IndexByte([]byte(raw), '{')
	end := bytes.LastIndexByte([]byte(raw), '}')
	if start < 0 || end < 0 || end < start {
		return []byte(raw)
	}
	return []byte(raw)[start : end+1]
}
