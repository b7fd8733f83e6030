package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolveTree(t *testing.T, out string) SurfaceTree {
	t.Helper()
	var tree SurfaceTree
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	require.NotNil(t, tree.Root)
	return tree
}

func TestResolveFile(t *testing.T) {
	out, err := execute(t, NewResolveCommand(&RootOptions{Format: "text"}), fixture("booking.a2ui.json"))
	require.NoError(t, err)

	tree := resolveTree(t, out)
	assert.Equal(t, "booking", tree.Surface)
	assert.Equal(t, "root", tree.Root.ID)
	require.Len(t, tree.Root.Children, 2)
	require.NotNil(t, tree.Root.Children[0].Text)
	assert.Equal(t, "Ada", *tree.Root.Children[0].Text)
	assert.Equal(t, "book_table", tree.Root.Children[1].Event)
}

func TestResolveOverlay(t *testing.T) {
	out, err := execute(t, NewResolveCommand(&RootOptions{Format: "text"}),
		"--overlay", fixture("guest.json"), fixture("booking.a2ui.json"))
	require.NoError(t, err)

	tree := resolveTree(t, out)
	require.NotNil(t, tree.Root.Children[0].Text)
	assert.Equal(t, "Lin", *tree.Root.Children[0].Text)
}

func TestResolveStoredDesign(t *testing.T) {
	db := tempDB(t)
	_, err := execute(t, NewImportCommand(&RootOptions{Format: "text"}), "--db", db, fixture("booking.a2ui.json"))
	require.NoError(t, err)

	out, err := execute(t, NewResolveCommand(&RootOptions{Format: "json"}), "--db", db, "booking")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   SurfaceTree `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "booking", resp.Data.Surface)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		args func(t *testing.T) []string
		code int
	}{
		{"unknown design", func(t *testing.T) []string { return []string{"--db", tempDB(t), "missing"} }, ExitCommandError},
		{"rejected batch", func(*testing.T) []string { return []string{fixture("malformed.json")} }, ExitFailure},
		{"unknown surface", func(*testing.T) []string { return []string{"--surface", "nope", fixture("booking.a2ui.json")} }, ExitCommandError},
		{"bad overlay", func(*testing.T) []string { return []string{"--overlay", fixture("frames.jsonl"), fixture("booking.a2ui.json")} }, ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, NewResolveCommand(&RootOptions{Format: "text"}), tt.args(t)...)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
		})
	}
}

func TestResolveDanglingChildStillRenders(t *testing.T) {
	out, err := execute(t, NewResolveCommand(&RootOptions{Format: "text"}), fixture("dangling.json"))
	require.NoError(t, err)

	var tree SurfaceTree
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	require.NotNil(t, tree.Root)
	assert.Equal(t, []string{"gone"}, tree.Root.Missing)
}

func TestQuery(t *testing.T) {
	out, err := execute(t, NewQueryCommand(&RootOptions{Format: "text"}), fixture("booking.a2ui.json"), "$.guest.name")
	require.NoError(t, err)
	assert.Equal(t, "Ada\n", out)

	out, err = execute(t, NewQueryCommand(&RootOptions{Format: "text"}), fixture("booking.a2ui.json"), "$.guest.party")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestQueryJSON(t *testing.T) {
	out, err := execute(t, NewQueryCommand(&RootOptions{Format: "json"}), fixture("booking.a2ui.json"), "$.guest.*")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   []any  `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.ElementsMatch(t, []any{"Ada", float64(2)}, resp.Data)
}

func TestQueryNoMatch(t *testing.T) {
	out, err := execute(t, NewQueryCommand(&RootOptions{Format: "json"}), fixture("booking.a2ui.json"), "$.nothing")
	require.NoError(t, err)

	var resp struct {
		Data []any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotNil(t, resp.Data)
	assert.Empty(t, resp.Data)
}
