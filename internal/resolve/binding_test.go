package resolve

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var bindingNow = time.Date(2025, 3, 14, 15, 9, 0, 0, time.UTC)

func TestResolveBinding(t *testing.T) {
	dm := map[string]any{
		"hello": map[string]any{"text": "Hi"},
		"stats": map[string]any{
			"count": 4.0,
			"ratio": 3.5,
			"huge":  1e21,
			"tiny":  1e-7,
			"neg":   -2.0,
			"on":    true,
			"off":   false,
			"none":  nil,
			"obj":   map[string]any{"x": 1.0},
			"list":  []any{"a"},
		},
		"flat":  "scalar",
		"clock": "It is {{current_time}}",
		"a":     map[string]any{"": map[string]any{"b": "empty segment"}},
	}

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"string leaf", "${/hello/text}", "Hi"},
		{"missing path", "${/missing/path}", "${/missing/path}"},
		{"empty input", "", ""},
		{"literal", "Hello", "Hello"},
		{"integer", "${/stats/count}", "4"},
		{"decimal", "${/stats/ratio}", "3.5"},
		{"large exponent", "${/stats/huge}", "1e+21"},
		{"small exponent", "${/stats/tiny}", "1e-7"},
		{"negative", "${/stats/neg}", "-2"},
		{"true", "${/stats/on}", "true"},
		{"false", "${/stats/off}", "false"},
		{"null", "${/stats/none}", "null"},
		{"object leaf", "${/stats/obj}", "${/stats/obj}"},
		{"array leaf", "${/stats/list}", "${/stats/list}"},
		{"scalar mid-path", "${/flat/deeper}", "${/flat/deeper}"},
		{"resolved template", "${/clock}", "It is 3:09 PM"},
		{"literal template", "Today is {{current_day}}", "Today is Friday"},
		{"no leading slash", "${hello/text}", "${hello/text}"},
		{"empty segments are literal keys", "${/a//b}", "empty segment"},
		{"root only", "${/}", "${/}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveBinding(tt.value, dm, bindingNow))
		})
	}
}

func TestResolveBindingNilModel(t *testing.T) {
	assert.Equal(t, "${/x}", ResolveBinding("${/x}", nil, bindingNow))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "0", Stringify(0.0))
	assert.Equal(t, "100", Stringify(100.0))
	assert.Equal(t, "0.1", Stringify(0.1))
	assert.Equal(t, "123456789012", Stringify(123456789012.0))
	assert.Equal(t, "NaN", Stringify(math.NaN()))
	assert.Equal(t, "Infinity", Stringify(math.Inf(1)))
	assert.Equal(t, "7", Stringify(7))
	assert.Equal(t, "", Stringify(struct{}{}))
}
