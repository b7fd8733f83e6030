package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/a2ui/internal/protocol"
)

var testTokens = map[string]protocol.DesignToken{
	"Accents.Red":  {Value: "#ff4245", Collection: "Colors"},
	"Spacing.M":    {Value: "16", Collection: "Spacing"},
	"Radius.Small": {Value: "4.5", Collection: "Radius"},
	"Big":          {Value: "1e3", Collection: "Spacing"},
	"Hex":          {Value: "0x10", Collection: "Spacing"},
	"Padded":       {Value: " 12", Collection: "Spacing"},
	"Inf":          {Value: "Inf", Collection: "Spacing"},
	"Px":           {Value: "12px", Collection: "Spacing"},
	"Clock":        {Value: "{{current_time}}", Collection: "Text"},
}

func TestResolveToken(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"color hit", "{Accents.Red}", "#ff4245"},
		{"binding is never a token", "${/x/y}", "${/x/y}"},
		{"miss returns original", "{Nope}", "{Nope}"},
		{"integer coerces", "{Spacing.M}", 16.0},
		{"decimal coerces", "{Radius.Small}", 4.5},
		{"exponent coerces", "{Big}", 1000.0},
		{"hex stays string", "{Hex}", "0x10"},
		{"whitespace stays string", "{Padded}", " 12"},
		{"inf stays string", "{Inf}", "Inf"},
		{"unit stays string", "{Px}", "12px"},
		{"no templates in tokens", "{Clock}", "{{current_time}}"},
		{"plain string", "bold", "bold"},
		{"empty braces", "{}", "{}"},
		{"number passes through", 12.0, 12.0},
		{"bool passes through", true, true},
		{"nil passes through", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveToken(tt.value, testTokens))
		})
	}
}

func TestResolveTokenNilTable(t *testing.T) {
	assert.Equal(t, "{Accents.Red}", ResolveToken("{Accents.Red}", nil))
}

func TestTokenName(t *testing.T) {
	name, ok := TokenName("{Accents.Red}")
	assert.True(t, ok)
	assert.Equal(t, "Accents.Red", name)

	_, ok = TokenName("${Accents.Red}")
	assert.False(t, ok)

	_, ok = TokenName("Accents.Red")
	assert.False(t, ok)
}

func TestResolveStyleValue(t *testing.T) {
	style := map[string]any{"color": "{Accents.Red}", "padding": "{Spacing.M}", "weight": "bold"}

	v, ok := ResolveStyleValue(style, "color", testTokens)
	assert.True(t, ok)
	assert.Equal(t, "#ff4245", v)

	v, ok = ResolveStyleValue(style, "padding", testTokens)
	assert.True(t, ok)
	assert.Equal(t, 16.0, v)

	_, ok = ResolveStyleValue(style, "missing", testTokens)
	assert.False(t, ok)

	_, ok = ResolveStyleValue(nil, "color", testTokens)
	assert.False(t, ok)
}

func TestResolveStyleLeavesInput(t *testing.T) {
	style := map[string]any{"color": "{Accents.Red}"}

	got := ResolveStyle(style, testTokens)

	assert.Equal(t, map[string]any{"color": "#ff4245"}, got)
	assert.Equal(t, "{Accents.Red}", style["color"])
	assert.Nil(t, ResolveStyle(nil, testTokens))
}
