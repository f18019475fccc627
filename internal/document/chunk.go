package document

import "github.com/ragcore/ragcore/pkg/idgen"

// Chunk is a bounded text window of a Document. It owns no Document data,
// only a DocID reference resolved through the keyed document store; there
// is never a back-pointer object.
type Chunk struct {
	ID                string
	DocID             string
	Position          int
	Text              string
	TokenCount        int
	ContainsNumbers   bool
	ContainsCurrency  bool
	StartLine         int
	EndLine           int
	StartChar         int
	EndChar           int
	EmbeddingModelTag string
}

// NewChunk builds a Chunk with the canonical "<docId>_chunk_<ordinal>" ID.
func NewChunk(docID string, position int, text string) *Chunk {
	return &Chunk{
		ID:       idgen.ChunkID(docID, position),
		DocID:    docID,
		Position: position,
		Text:     text,
	}
}
