package protocol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitBatchArray(t *testing.T) {
	raws, err := SplitBatch([]byte(`[{"createSurface":{"surfaceId":"a"}}, {"deleteSurface":{"surfaceId":"a"}}]`))
	require.NoError(t, err)
	assert.Len(t, raws, 2)
}

func TestSplitBatchJSONLines(t *testing.T) {
	input := "{\"createSurface\":{\"surfaceId\":\"a\"}}\n\n{\"deleteSurface\":{\"surfaceId\":\"a\"}}\n"
	raws, err := SplitBatch([]byte(input))
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.JSONEq(t, `{"deleteSurface":{"surfaceId":"a"}}`, string(raws[1]))
}

func TestSplitBatchEmpty(t *testing.T) {
	for _, input := range []string{"", "  \n", "[]"} {
		raws, err := SplitBatch([]byte(input))
		require.NoError(t, err)
		assert.NotNil(t, raws)
		assert.Empty(t, raws)
	}
}

func TestSplitBatchMalformed(t *testing.T) {
	_, err := SplitBatch([]byte(`[{"createSurface":`))
	assert.Error(t, err)

	_, err = SplitBatch([]byte("{\"createSurface\":{}}\n{oops"))
	assert.ErrorContains(t, err, "line 2")
}

func TestDecodeBatchIndexesErrors(t *testing.T) {
	_, err := DecodeBatch([]byte(`[{"createSurface":{"surfaceId":"a"}},{"nope":{}}]`))
	assert.ErrorIs(t, err, ErrNoMessageKind)
	assert.ErrorContains(t, err, "messages[1]")
}

func TestDecodeGeneric(t *testing.T) {
	raws, err := SplitBatch([]byte(`[{"updateComponents":{"surfaceId":"s","components":"oops"}}]`))
	require.NoError(t, err)

	values, err := DecodeGeneric(raws)
	require.NoError(t, err)
	require.Len(t, values, 1)

	obj := values[0].(map[string]any)
	assert.Equal(t, "oops", obj["updateComponents"].(map[string]any)["components"])
}

func TestEncodeBatch(t *testing.T) {
	out, err := EncodeBatch(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))

	out, err = EncodeBatch([]Envelope{Wrap(&DeleteSurface{SurfaceID: "x"})})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"deleteSurface":{"surfaceId":"x"}}]`, string(out))
}

func TestLoadFileFormats(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"createSurface":{"surfaceId":"a"}}]`), 0o644))

	jsonlPath := filepath.Join(dir, "a.jsonl")
	require.NoError(t, os.WriteFile(jsonlPath, []byte("{\"createSurface\":{\"surfaceId\":\"a\"}}\n"), 0o644))

	cuePath := filepath.Join(dir, "a.cue")
	require.NoError(t, os.WriteFile(cuePath, []byte(`
_id: "a"
messages: [
	{createSurface: surfaceId: _id},
	{updateComponents: {surfaceId: _id, components: [{id: "root", component: "Text", text: "Hi"}]}},
]
`), 0o644))

	for _, path := range []string{jsonPath, jsonlPath, cuePath} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			raws, err := LoadFile(path)
			require.NoError(t, err)
			envs, err := DecodeRaw(raws)
			require.NoError(t, err)
			require.NotEmpty(t, envs)
			assert.Equal(t, KindCreateSurface, envs[0].Kind())
			assert.Equal(t, "a", envs[0].SurfaceID())
		})
	}
}

func TestLoadCUEWithoutMessages(t *testing.T) {
	_, err := LoadBytes([]byte(`other: 1`), FormatCUE, "x.cue")

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeNoMessages, loadErr.Code)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeRead, loadErr.Code)
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatForPath("x.a2ui.json"))
	assert.Equal(t, FormatJSONL, FormatForPath("x.JSONL"))
	assert.Equal(t, FormatCUE, FormatForPath("dir/x.cue"))
	assert.Equal(t, FormatJSON, FormatForPath("noext"))
}
