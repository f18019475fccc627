// Package document defines the Document and Chunk data model described in
// the data model specification: documents are immutable metadata records
// created once at ingestion, chunks hold only a reference to their owning
// document, never a copy of its fields.
package document

import (
	"math"
	"time"
)

// Kind enumerates the recognized document kinds.
type Kind string

const (
	KindPromo      Kind = "promo"
	KindDisclosure Kind = "disclosure"
	KindTerms      Kind = "terms"
	KindFAQ        Kind = "faq"
	KindLanding    Kind = "landing"
	KindForm       Kind = "form"
	KindOther      Kind = "other"
)

// Valid reports whether k is one of the recognized document kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindPromo, KindDisclosure, KindTerms, KindFAQ, KindLanding, KindForm, KindOther:
		return true
	default:
		return false
	}
}

// Document is an immutable, content-derived record describing one ingested
// source document. Created once on ingestion; a re-ingestion of the same
// source path produces a full replacement, never a partial mutation.
type Document struct {
	ID              string
	URL             string
	Title           string
	Kind            Kind
	Language        string
	Published       *time.Time
	Updated         *time.Time
	Effective       *time.Time
	Expires         *time.Time
	GeographicScope string
	Currency        string
	ProductEntities []string
	Categories      []string
	AuthorityScore  float64
	ProvenancePath  string
}

// AuthorityInputs are the two priors averaged to produce a Document's
// AuthorityScore. They come from the ingestion pipeline's authority
// configuration; this package only performs the averaging and range
// clamping.
type AuthorityInputs struct {
	DomainAuthority float64
	KindAuthority   float64
}

// ComputeAuthorityScore averages the two authority priors and clamps the
// result into [0,1], satisfying the invariant that AuthorityScore MUST lie
// in [0,1].
func ComputeAuthorityScore(in AuthorityInputs) float64 {
	score := (in.DomainAuthority + in.KindAuthority) / 2.0
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// FreshnessDecay returns a [0,1] recency score for a document's Updated
// timestamp relative to now, decaying exponentially with a 180-day
// half-life. A nil Updated (unknown recency) decays to 0, the conservative
// choice for the heuristic boost in the hybrid retriever.
func FreshnessDecay(updated *time.Time, now time.Time) float64 {
	if updated == nil {
		return 0
	}
	const halfLifeDays = 180.0
	ageDays := now.Sub(*updated).Hours() / 24.0
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Pow(2, -ageDays/halfLifeDays)
}
