package resolve

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var bindingPattern = regexp.MustCompile(`^\$\{/(.+)\}$`)

// BindingPath extracts the slash path from a "${/path}" reference.
func BindingPath(s string) (string, bool) {
	m := bindingPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ResolveBinding resolves a data binding against dataModel and expands time
// templates in the result using now.
//
// The bound path is walked object by object. A missing segment, a
// non-object intermediate, or an object or array leaf all fall back to
// value itself. Scalar leaves are stringified.
func ResolveBinding(value string, dataModel map[string]any, now time.Time) string {
	resolved, _ := lookupBinding(value, dataModel)
	return ExpandTemplates(resolved, now)
}

// lookupBinding reports false when value is a binding that did not resolve.
func lookupBinding(value string, dataModel map[string]any) (string, bool) {
	if value == "" {
		return "", true
	}
	path, ok := BindingPath(value)
	if !ok {
		return value, true
	}

	var current any = dataModel
	for _, seg := range strings.Split(path, "/") {
		obj, ok := current.(map[string]any)
		if !ok {
			return value, false
		}
		current, ok = obj[seg]
		if !ok {
			return value, false
		}
	}

	switch v := current.(type) {
	case map[string]any, []any:
		return value, false
	default:
		return Stringify(v), true
	}
}

// Stringify formats a scalar the way every renderer must: strings as is,
// numbers in their shortest round-trip form, booleans and null as their
// JSON literals.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return formatNumber(val)
	case float32:
		return formatNumber(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}

// formatNumber matches ECMAScript Number#toString for the common range and
// switches to exponent form outside it.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		s := strconv.FormatFloat(f, 'g', -1, 64)
		s = strings.Replace(s, "e-0", "e-", 1)
		return strings.Replace(s, "e+0", "e+", 1)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
