package textstat

import "regexp"

// EntityType classifies a recognized entity surface form.
type EntityType string

const (
	EntityPerson  EntityType = "person"
	EntityOrg     EntityType = "org"
	EntityAmount  EntityType = "amount"
	EntityDate    EntityType = "date"
	EntityProduct EntityType = "product"
)

// Entity is a recognized named entity with its surface form, type, and span.
type Entity struct {
	Text string
	Type EntityType
	Span Span
}

var (
	datePattern = regexp.MustCompile(
		`\b(?:\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|` +
			`(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4})\b`)

	// properNounPattern matches runs of capitalized words, a cheap stand-in
	// for a person/org recognizer.
	properNounPattern = regexp.MustCompile(`\b([A-Z][a-zA-Z]*(?:\s+[A-Z][a-zA-Z]*)*)\b`)

	orgSuffixPattern = regexp.MustCompile(`\b[A-Z][\w&]*(?:\s+[A-Z][\w&]*)*\s+(?:Inc|LLC|Ltd|Corp|Bank|Group|Co)\.?\b`)
)

// ExtractEntities recognizes persons/orgs/amounts/dates/products in text.
// knownProducts/knownOrgs (typically sourced from retrieved documents'
// ProductEntities / a domain lexicon) bias capitalized-phrase matches toward
// the correct type instead of a generic "person" guess.
func ExtractEntities(text string, knownProducts, knownOrgs []string) []Entity {
	var out []Entity

	for _, m := range datePattern.FindAllStringIndex(text, -1) {
		out = append(out, Entity{Text: text[m[0]:m[1]], Type: EntityDate, Span: Span{m[0], m[1]}})
	}

	for _, numTok := range ExtractNumbers(text) {
		if hasCurrencyHint(numTok.Raw) {
			out = append(out, Entity{Text: numTok.Raw, Type: EntityAmount, Span: numTok.Span})
		}
	}

	for _, m := range orgSuffixPattern.FindAllStringIndex(text, -1) {
		out = append(out, Entity{Text: text[m[0]:m[1]], Type: EntityOrg, Span: Span{m[0], m[1]}})
	}

	productSet := toSet(knownProducts)
	orgSet := toSet(knownOrgs)
	for _, m := range properNounPattern.FindAllStringIndex(text, -1) {
		phrase := text[m[0]:m[1]]
		if overlapsExisting(out, m[0], m[1]) {
			continue
		}
		switch {
		case productSet[phrase]:
			out = append(out, Entity{Text: phrase, Type: EntityProduct, Span: Span{m[0], m[1]}})
		case orgSet[phrase]:
			out = append(out, Entity{Text: phrase, Type: EntityOrg, Span: Span{m[0], m[1]}})
		default:
			out = append(out, Entity{Text: phrase, Type: EntityPerson, Span: Span{m[0], m[1]}})
		}
	}

	return out
}

func hasCurrencyHint(raw string) bool {
	for _, r := range raw {
		switch r {
		case '$', '€', '£', '%':
			return true
		}
	}
	return false
}

func overlapsExisting(entities []Entity, start, end int) bool {
	for _, e := range entities {
		if start < e.Span.End && end > e.Span.Start {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
