//go:build property
// +build property

package datamodel_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/roach88/a2ui/internal/datamodel"
)

func buildTree(keys, values []string) map[string]any {
	tree := make(map[string]any)
	for i := 0; i < len(keys) && i < len(values); i++ {
		if keys[i] == "" {
			continue
		}
		if i%2 == 0 {
			tree[keys[i]] = map[string]any{"v": values[i], "n": float64(i)}
		} else {
			tree[keys[i]] = values[i]
		}
	}
	return tree
}

// Property: SetAtPath never changes keys outside the addressed branch.
func TestSetAtPathIsolation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("siblings are untouched", prop.ForAll(
		func(keys, values []string, target, leaf string) bool {
			if target == "" || leaf == "" {
				return true
			}
			tree := buildTree(keys, values)
			before := datamodel.Clone(tree)

			got := datamodel.SetAtPath(tree, "/"+target+"/"+leaf, "x")

			if !reflect.DeepEqual(before, tree) {
				return false
			}
			for k, v := range before {
				if k == target {
					continue
				}
				if !reflect.DeepEqual(v, got[k]) {
					return false
				}
			}
			v, ok := datamodel.Get(got, target+"/"+leaf)
			return ok && v == "x"
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// Property: Merge(base, base) == base and Merge(base, {}) == base.
func TestMergeIdentity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("merge with self or empty is identity", prop.ForAll(
		func(keys, values []string) bool {
			base := buildTree(keys, values)
			return reflect.DeepEqual(base, datamodel.Merge(base, base)) &&
				reflect.DeepEqual(base, datamodel.Merge(base, map[string]any{}))
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// Property: every overlay leaf is visible in the merged tree.
func TestMergeRightBiased(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("overlay wins on conflict", prop.ForAll(
		func(bk, bv, ok, ov []string) bool {
			base := buildTree(bk, bv)
			overlay := buildTree(ok, ov)
			merged := datamodel.Merge(base, overlay)
			for k, v := range overlay {
				obj, isObj := v.(map[string]any)
				if !isObj {
					if merged[k] != v {
						return false
					}
					continue
				}
				for ik, iv := range obj {
					got, found := datamodel.Get(merged, k+"/"+ik)
					if !found || !reflect.DeepEqual(got, iv) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// Property: a flat overlay normalizes to the same tree as SetAtPath chains.
func TestNormalizeOverlayMatchesSetAtPath(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("flat keys expand like upserts", prop.ForAll(
		func(a, b, value string) bool {
			if a == "" || b == "" || strings.Contains(a+b, "/") {
				return true
			}
			flat := map[string]any{"/" + a + "/" + b: value}
			want := datamodel.SetAtPath(nil, a+"/"+b, value)
			return reflect.DeepEqual(want, datamodel.NormalizeOverlay(flat))
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
