package resolve

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/a2ui/internal/protocol"
)

var (
	tokenPattern   = regexp.MustCompile(`^\{(.+)\}$`)
	decimalPattern = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
)

// ResolveToken resolves a style value against tokens. Non-string values are
// returned unchanged. A string of the form "{name}" (but not "${...}")
// resolves to the token's value, as a float64 when it is a finite decimal
// literal. Misses return the original string.
func ResolveToken(value any, tokens map[string]protocol.DesignToken) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	name, ok := TokenName(s)
	if !ok {
		return s
	}
	tok, ok := tokens[name]
	if !ok {
		return s
	}
	if n, ok := parseDecimal(tok.Value); ok {
		return n
	}
	return tok.Value
}

// TokenName extracts the token name from a "{name}" reference.
func TokenName(s string) (string, bool) {
	if strings.HasPrefix(s, "${") {
		return "", false
	}
	m := tokenPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func parseDecimal(s string) (float64, bool) {
	if !decimalPattern.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

// ResolveStyleValue looks up key in style and resolves it as a token. It
// reports false when the style map or key is absent.
func ResolveStyleValue(style map[string]any, key string, tokens map[string]protocol.DesignToken) (any, bool) {
	if style == nil {
		return nil, false
	}
	v, ok := style[key]
	if !ok {
		return nil, false
	}
	return ResolveToken(v, tokens), true
}

// ResolveStyle resolves every entry in a style map. The input is not
// modified.
func ResolveStyle(style map[string]any, tokens map[string]protocol.DesignToken) map[string]any {
	if style == nil {
		return nil
	}
	out := make(map[string]any, len(style))
	for k, v := range style {
		out[k] = ResolveToken(v, tokens)
	}
	return out
}
