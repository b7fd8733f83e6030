package preview

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/a2ui/internal/protocol"
	"github.com/roach88/a2ui/internal/resolve"
	"github.com/roach88/a2ui/internal/surface"
	"github.com/roach88/a2ui/internal/testutil"
)

const bookingBatch = `[
	{"createSurface": {"surfaceId": "main", "designTokens": {
		"Spacing.M": {"value": "16"},
		"Colors.Brand": {"value": "#2563eb", "collection": "Colors"}
	}}},
	{"updateComponents": {"surfaceId": "main", "components": [
		{"id": "root", "component": "Column", "children": {"explicitList": ["header", "card", "ghost"]}, "style": {"gap": "{Spacing.M}"}},
		{"id": "header", "component": "Text", "text": "${/user/name}"},
		{"id": "card", "component": "Card", "children": {"explicitList": ["body", "cta"]}},
		{"id": "body", "component": "Text", "text": "This sentence is definitely longer than thirty runes."},
		{"id": "cta", "component": "Button", "label": "Book at {{current_time}}",
			"action": {"event": {"name": "book"}}, "style": {"color": "{Colors.Brand}", "radius": "{Missing}"}}
	]}},
	{"updateDataModel": {"surfaceId": "main", "value": {"user": {"name": "Ada"}}}}
]`

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadSurface(t *testing.T, batch string) *surface.Surface {
	t.Helper()
	store := surface.New(surface.WithLogger(quiet()))
	envs, err := protocol.DecodeBatch([]byte(batch))
	require.NoError(t, err)
	require.NoError(t, store.ApplyBatch(envs))
	surf, ok := store.Get("main")
	require.True(t, ok)
	return surf
}

func testResolver() *resolve.Resolver {
	clock := testutil.NewFixedClock(time.Date(2025, 3, 14, 15, 9, 0, 0, time.UTC))
	return resolve.New(resolve.WithClock(clock), resolve.WithLocation(time.UTC), resolve.WithLogger(quiet()))
}

func goldenTree(t *testing.T, name string, n *Node) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteTree(&buf, n))
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, buf.Bytes())
}

func TestBuildResolvesTree(t *testing.T) {
	surf := loadSurface(t, bookingBatch)
	root := Build(surf, testResolver(), WithLogger(quiet()))
	require.NotNil(t, root)

	assert.Equal(t, "Column", root.Type)
	assert.Equal(t, map[string]any{"gap": 16.0}, root.Style)
	assert.Equal(t, []string{"ghost"}, root.Missing)
	require.Len(t, root.Children, 2)

	header := root.Find("header")
	require.NotNil(t, header)
	assert.Equal(t, "Ada", *header.Text)

	cta := root.Find("cta")
	require.NotNil(t, cta)
	assert.Equal(t, "Book at 3:09 PM", *cta.Label)
	assert.Equal(t, "book", cta.Event)
	assert.Equal(t, "#2563eb", cta.Style["color"])
	assert.Equal(t, "{Missing}", cta.Style["radius"], "unresolved tokens keep their reference")

	goldenTree(t, "booking", root)
}

func TestBuildWithoutRoot(t *testing.T) {
	surf := loadSurface(t, `[
		{"createSurface": {"surfaceId": "main"}},
		{"updateComponents": {"surfaceId": "main", "components": [{"id": "a", "component": "Text", "text": "A"}]}}
	]`)
	assert.Nil(t, Build(surf, testResolver()))

	var buf bytes.Buffer
	require.NoError(t, WriteTree(&buf, nil))
	assert.Equal(t, "(no root component)\n", buf.String())
}

func TestBuildStopsAtCycles(t *testing.T) {
	surf := loadSurface(t, `[
		{"createSurface": {"surfaceId": "main"}},
		{"updateComponents": {"surfaceId": "main", "components": [
			{"id": "root", "component": "Column", "children": {"explicitList": ["a"]}},
			{"id": "a", "component": "Row", "children": {"explicitList": ["root"]}}
		]}}
	]`)
	root := Build(surf, testResolver(), WithLogger(quiet()))
	require.NotNil(t, root)

	again := root.Children[0].Children[0]
	assert.Equal(t, "root", again.ID)
	assert.True(t, again.Cycle)
	assert.Empty(t, again.Children)

	goldenTree(t, "cycle", root)
}

func TestBuildDepthLimit(t *testing.T) {
	surf := loadSurface(t, `[
		{"createSurface": {"surfaceId": "main"}},
		{"updateComponents": {"surfaceId": "main", "components": [
			{"id": "root", "component": "Column", "children": {"explicitList": ["a"]}},
			{"id": "a", "component": "Column", "children": {"explicitList": ["b"]}},
			{"id": "b", "component": "Text", "text": "deep"}
		]}}
	]`)
	root := Build(surf, testResolver(), WithMaxDepth(1), WithLogger(quiet()))
	require.NotNil(t, root)

	a := root.Find("a")
	require.NotNil(t, a)
	assert.True(t, a.Truncated)
	assert.Nil(t, root.Find("b"))
}

func TestPersonalize(t *testing.T) {
	surf := loadSurface(t, bookingBatch)
	personal := Personalize(surf, map[string]any{"/user/name": "Grace", "extra": map[string]any{"vip": true}})

	assert.Equal(t, "Ada", surf.DataModel["user"].(map[string]any)["name"], "original untouched")
	assert.Equal(t, true, personal.DataModel["extra"].(map[string]any)["vip"])

	goldenTree(t, "booking_personalized", Build(personal, testResolver(), WithLogger(quiet())))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 30, "short"},
		{"exactly", 7, "exactly"},
		{"abcdef", 3, "abc..."},
		{"héllo wörld", 5, "héllo..."},
		{"", 3, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.limit))
		})
	}
}
