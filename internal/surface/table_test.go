package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/a2ui/internal/protocol"
)

func text(s string) *string { return &s }

func TestComponentTableUpsertReplaces(t *testing.T) {
	tbl := NewComponentTable()
	tbl.Upsert(protocol.Component{ID: "a", ComponentType: "Text", Text: text("one"), Style: map[string]any{"color": "red"}})
	tbl.Upsert(protocol.Component{ID: "a", ComponentType: "Button", Label: text("two")})

	require.Equal(t, 1, tbl.Len())
	c, ok := tbl.Get("a")
	require.True(t, ok)
	assert.Equal(t, "Button", c.ComponentType)
	assert.Nil(t, c.Text)
	assert.Nil(t, c.Style)
}

func TestComponentTableStoresCopies(t *testing.T) {
	tbl := NewComponentTable()
	in := protocol.Component{
		ID:            "row",
		ComponentType: "Row",
		Children:      &protocol.ChildSpec{ExplicitList: []string{"a"}},
		Style:         map[string]any{"gap": 4.0},
	}
	tbl.Upsert(in)

	in.Children.ExplicitList[0] = "mutated"
	in.Style["gap"] = 8.0

	got, _ := tbl.Get("row")
	assert.Equal(t, []string{"a"}, got.ChildIDs())
	assert.Equal(t, 4.0, got.Style["gap"])
}

func TestComponentTableIDsSorted(t *testing.T) {
	tbl := NewComponentTable()
	for _, id := range []string{"c", "a", "b"} {
		tbl.Upsert(protocol.Component{ID: id, ComponentType: "Text"})
	}
	assert.Equal(t, []string{"a", "b", "c"}, tbl.IDs())
	assert.True(t, tbl.Has("b"))
	assert.False(t, tbl.Has("z"))
}

func TestComponentTableDanglingRefs(t *testing.T) {
	tbl := NewComponentTable()
	tbl.Upsert(protocol.Component{ID: "root", ComponentType: "Column", Children: &protocol.ChildSpec{ExplicitList: []string{"x", "a", "y"}}})
	tbl.Upsert(protocol.Component{ID: "a", ComponentType: "Row", Children: &protocol.ChildSpec{ExplicitList: []string{"z"}}})

	assert.Equal(t, []DanglingRef{
		{Parent: "a", Child: "z"},
		{Parent: "root", Child: "x"},
		{Parent: "root", Child: "y"},
	}, tbl.DanglingRefs())

	tbl.Upsert(protocol.Component{ID: "x", ComponentType: "Text"})
	tbl.Upsert(protocol.Component{ID: "y", ComponentType: "Text"})
	tbl.Upsert(protocol.Component{ID: "z", ComponentType: "Text"})
	assert.Empty(t, tbl.DanglingRefs())
}

func TestComponentTableCopyIsolated(t *testing.T) {
	tbl := NewComponentTable()
	tbl.Upsert(protocol.Component{ID: "a", ComponentType: "Text"})
	cp := tbl.copy()

	tbl.Upsert(protocol.Component{ID: "b", ComponentType: "Text"})
	assert.Equal(t, 1, cp.Len())
	assert.Equal(t, 2, tbl.Len())
}
