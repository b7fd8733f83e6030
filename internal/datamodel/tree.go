package datamodel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// SplitPath splits a slash path into segments. Empty segments, including
// the one produced by a leading slash, are dropped.
func SplitPath(path string) []string {
	raw := strings.Split(path, "/")
	segs := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// IsObject reports whether v is a decoded JSON object.
func IsObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// SetAtPath returns a tree equal to tree with value written at path.
// Missing intermediate segments become empty objects, and non-object values
// found mid-path are replaced by empty objects. A path with no segments
// returns tree unchanged.
func SetAtPath(tree map[string]any, path string, value any) map[string]any {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return tree
	}
	return setAt(tree, segs, value)
}

func setAt(node map[string]any, segs []string, value any) map[string]any {
	out := make(map[string]any, len(node)+1)
	for k, v := range node {
		out[k] = v
	}
	if len(segs) == 1 {
		out[segs[0]] = value
		return out
	}
	child, _ := node[segs[0]].(map[string]any)
	out[segs[0]] = setAt(child, segs[1:], value)
	return out
}

// Get walks path object by object. It reports false when a segment is
// missing or an intermediate value is not an object. An empty path returns
// the tree itself.
func Get(tree map[string]any, path string) (any, bool) {
	var current any = tree
	for _, seg := range SplitPath(path) {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Merge returns base overlaid with overlay. Where both sides hold objects
// the merge recurses; otherwise the overlay value replaces the base value
// wholesale, arrays included. Neither input is modified.
func Merge(base, overlay map[string]any) map[string]any {
	out := Clone(base)
	if out == nil {
		out = make(map[string]any, len(overlay))
	}
	for k, ov := range overlay {
		ovObj, ovIsObj := ov.(map[string]any)
		bObj, bIsObj := out[k].(map[string]any)
		if ovIsObj && bIsObj {
			out[k] = Merge(bObj, ovObj)
			continue
		}
		out[k] = CloneValue(ov)
	}
	return out
}

// NormalizeOverlay expands flat slash keys ("/a/b": v) into nested
// single-branch objects and merges them with the keys that are already
// nested. Nested keys are applied first, then flat keys in sorted order, so
// the result is deterministic when both forms address the same branch.
func NormalizeOverlay(overlay map[string]any) map[string]any {
	out := make(map[string]any, len(overlay))
	var flat []string
	for k, v := range overlay {
		if strings.HasPrefix(k, "/") {
			flat = append(flat, k)
			continue
		}
		out[k] = CloneValue(v)
	}
	sort.Strings(flat)

	for _, k := range flat {
		segs := SplitPath(k)
		if len(segs) == 0 {
			continue
		}
		out = Merge(out, expand(segs, overlay[k]))
	}
	return out
}

// expand builds {segs[0]: {segs[1]: ... value}}.
func expand(segs []string, value any) map[string]any {
	v := value
	for i := len(segs) - 1; i >= 0; i-- {
		v = map[string]any{segs[i]: v}
	}
	return v.(map[string]any)
}

// Clone deep-copies a tree. Clone(nil) is nil.
func Clone(tree map[string]any) map[string]any {
	if tree == nil {
		return nil
	}
	out := make(map[string]any, len(tree))
	for k, v := range tree {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a decoded JSON value. Scalars are returned as is.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Clone(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Query evaluates a JSONPath expression against the tree.
func Query(tree map[string]any, selector string) ([]any, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	results := x.Get(tree)
	if results == nil {
		results = []any{}
	}
	return results, nil
}
