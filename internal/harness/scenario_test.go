package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "One inline import"
steps:
  - mode: import
    messages:
      - createSurface: {surfaceId: main}
      - updateComponents:
          surfaceId: main
          components:
            - {id: root, component: Text, text: Hello}
assertions:
  - type: surface_exists
    surface: main
`

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	assert.Equal(t, "One inline import", scenario.Description)
	require.Len(t, scenario.Steps, 1)
	assert.Equal(t, ModeImport, scenario.Steps[0].Mode)
	assert.Len(t, scenario.Steps[0].Messages, 2)
	assert.Len(t, scenario.Assertions, 1)
	assert.Equal(t, dir, scenario.baseDir)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario+"assertion: []\n"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_StepFileRelativeToScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/booking_flow.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "batches", "booking.json"),
		scenario.stepPath(scenario.Steps[0].File))
}

func TestValidateScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: `
description: d
steps: [{mode: live, messages: []}]
assertions: [{type: surface_exists, surface: s}]
`,
			want: "name is required",
		},
		{
			name: "missing steps",
			yaml: `
name: n
description: d
assertions: [{type: surface_exists, surface: s}]
`,
			want: "steps list is required",
		},
		{
			name: "bad mode",
			yaml: `
name: n
description: d
steps: [{mode: replay, messages: []}]
assertions: [{type: surface_exists, surface: s}]
`,
			want: `unknown mode "replay"`,
		},
		{
			name: "file and messages",
			yaml: `
name: n
description: d
steps: [{mode: live, file: x.json, messages: []}]
assertions: [{type: surface_exists, surface: s}]
`,
			want: "exactly one of file and messages",
		},
		{
			name: "missing step file",
			yaml: `
name: n
description: d
steps: [{mode: import, file: missing.json}]
assertions: [{type: surface_exists, surface: s}]
`,
			want: "file not found",
		},
		{
			name: "bad now",
			yaml: `
name: n
description: d
now: yesterday
steps: [{mode: live, messages: []}]
assertions: [{type: surface_exists, surface: s}]
`,
			want: "now:",
		},
		{
			name: "unknown assertion",
			yaml: `
name: n
description: d
steps: [{mode: live, messages: []}]
assertions: [{type: trace_contains}]
`,
			want: `unknown assertion type "trace_contains"`,
		},
		{
			name: "resolved text needs string",
			yaml: `
name: n
description: d
steps: [{mode: live, messages: []}]
assertions: [{type: resolved_text, surface: s, component: c, expect: 3}]
`,
			want: "expect must be a string",
		},
		{
			name: "renderable needs bool",
			yaml: `
name: n
description: d
steps: [{mode: live, messages: []}]
assertions: [{type: renderable, surface: s}]
`,
			want: "expect must be a bool",
		},
		{
			name: "step out of range",
			yaml: `
name: n
description: d
steps: [{mode: live, messages: []}]
assertions: [{type: validation_error, code: E300, step: 1}]
`,
			want: "step 1 out of range",
		},
		{
			name: "data model needs path",
			yaml: `
name: n
description: d
steps: [{mode: live, messages: []}]
assertions: [{type: data_model, surface: s, expect: 1}]
`,
			want: "path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml), t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScenarioTime(t *testing.T) {
	s := &Scenario{}
	now, err := s.NowTime()
	require.NoError(t, err)
	assert.Equal(t, DefaultNow, now)

	loc, err := s.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	s.Now = "2025-03-14T15:09:00Z"
	s.Timezone = "America/New_York"
	now, err = s.NowTime()
	require.NoError(t, err)
	assert.Equal(t, 15, now.Hour())
	loc, err = s.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}
