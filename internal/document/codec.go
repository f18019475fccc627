package document

import "encoding/json"

// EncodeList JSON-encodes a list metadata field (categories, product
// entities) to the scalar string the storage engine's payload requires.
// Absent/empty lists become the empty string, never "null", so the stored
// payload never carries a null in place of a missing optional field.
func EncodeList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	b, _ := json.Marshal(items)
	return string(b)
}

// DecodeList reverses EncodeList. An empty string decodes to a nil slice.
func DecodeList(encoded string) []string {
	if encoded == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(encoded), &items); err != nil {
		return nil
	}
	return items
}
