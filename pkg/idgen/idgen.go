// Package idgen centralizes identifier generation so that the entropy and
// format guarantees described in the data model (stable content-derived
// document IDs, opaque high-entropy session IDs) live in one place.
package idgen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ContentHash derives a stable identifier from content, used for Document IDs
// so that re-ingesting identical content yields the same identifier.
func ContentHash(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ChunkID builds the canonical "<docId>_chunk_<ordinal>" chunk identifier.
func ChunkID(docID string, ordinal int) string {
	return fmt.Sprintf("%s_chunk_%d", docID, ordinal)
}

// Session returns an opaque, unguessable session identifier carrying at
// least 128 bits of entropy: two random bytes, hex-encoded, prefixed to the
// string form of a random UUIDv4 (122 + 16 = 138 random bits).
func Session() string {
	u := uuid.New()
	var salt [2]byte
	_, _ = rand.Read(salt[:])
	return hex.EncodeToString(salt[:]) + u.String()
}
