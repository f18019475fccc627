// Package tokencount estimates token counts for chunk text at ingestion
// time.
package tokencount

import "github.com/pkoukk/tiktoken-go"

// Counter estimates the number of model tokens a piece of text occupies.
type Counter interface {
	Count(text string) int
}

// Tiktoken counts tokens using OpenAI's cl100k_base byte-pair encoding, the
// encoding backing the embedding and chat models the LLM collaborator
// targets.
type Tiktoken struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktoken loads the cl100k_base encoding. Panics if the encoding's
// built-in rank data cannot be loaded, which only happens on a broken
// build.
func NewTiktoken() *Tiktoken {
	encoding, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	if err != nil {
		panic(err)
	}
	return &Tiktoken{encoding: encoding}
}

// Count returns the number of cl100k_base tokens text encodes to.
func (t *Tiktoken) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}
