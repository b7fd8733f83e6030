package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoldenPath(t *testing.T) {
	assert.Equal(t, filepath.Join("scenarios", "golden", "booking.golden"),
		GoldenPath(filepath.Join("scenarios", "booking.yaml")))
}

func TestCompareAndUpdateGolden(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden", "x.golden")

	match, found, err := CompareGolden(path, []byte("tree"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, match)

	require.NoError(t, UpdateGolden(path, []byte("tree")))
	match, found, err = CompareGolden(path, []byte("tree"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, match)

	match, _, err = CompareGolden(path, []byte("other"))
	require.NoError(t, err)
	assert.False(t, match)
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario := loadTestScenario(t, "live_partial")
	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, Snapshot(scenario, first), Snapshot(scenario, second))

	golden, err := os.ReadFile(filepath.Join("testdata", "golden", "live_partial.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(golden), string(Snapshot(scenario, first)))
}
