package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for v.
//
// Strings and object keys are NFC normalized before canonicalization, so two
// designs that differ only in Unicode composition hash the same. Numbers
// follow the JCS (ECMAScript) number serialization.
func MarshalCanonical(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: %w", err)
	}
	return CanonicalizeJSON(data)
}

// CanonicalizeJSON canonicalizes already-encoded JSON.
func CanonicalizeJSON(data []byte) ([]byte, error) {
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("canonical: %w", err)
	}
	normalized, err := json.Marshal(NormalizeStrings(generic))
	if err != nil {
		return nil, fmt.Errorf("canonical: %w", err)
	}
	out, err := jcs.Transform(normalized)
	if err != nil {
		return nil, fmt.Errorf("canonical: %w", err)
	}
	return out, nil
}

// NormalizeStrings returns a copy of a decoded JSON value with every string
// and object key in NFC form. When two keys collapse to the same NFC form
// the one that sorts last wins.
func NormalizeStrings(v any) any {
	switch val := v.(type) {
	case string:
		return norm.NFC.String(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = NormalizeStrings(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[norm.NFC.String(k)] = NormalizeStrings(e)
		}
		return out
	default:
		return v
	}
}
