// Package datamodel implements the surface data model: a nested tree of
// decoded JSON values addressed by slash-separated paths.
//
// Values are what encoding/json produces when decoding into any: string,
// float64, bool, nil, map[string]any and []any. Only objects are
// traversable by path; arrays are opaque leaves.
//
// Two mutation algorithms are provided and they are not interchangeable.
// SetAtPath writes a single branch and leaves every sibling untouched.
// Merge overlays one whole tree onto another, recursing only where both
// sides hold objects.
//
// All functions treat their inputs as read-only and return new trees.
// SetAtPath shares the untouched siblings with its input (copy-on-write
// along the addressed branch), so callers must not mutate returned trees in
// place.
package datamodel
