package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultNow is the render time used when a scenario leaves now empty.
var DefaultNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// Scenario defines a conformance test scenario.
// A scenario feeds batches into a fresh surface store and asserts on the
// resulting surfaces, their resolved text and the validator findings.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Now is the RFC 3339 render time used for template expansion.
	Now string `yaml:"now,omitempty"`

	// Timezone is an IANA zone name for template expansion. Defaults to UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// LegacyDataModel accepts the old updateDataModel.dataModel form.
	LegacyDataModel bool `yaml:"legacy_data_model,omitempty"`

	// Steps are applied in order to one store.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final store state.
	// Supported types: surface_exists, surface_absent, component_exists,
	// resolved_text, data_model, validation_error, renderable
	Assertions []Assertion `yaml:"assertions"`

	// baseDir resolves relative step files.
	baseDir string
}

// Step is one batch fed to the store.
type Step struct {
	// Mode is "import" (whole-batch export validation) or "live"
	// (incremental, best effort).
	Mode string `yaml:"mode"`

	// File is a batch file (.json, .jsonl or .cue), relative to the
	// scenario file.
	File string `yaml:"file,omitempty"`

	// Messages is an inline batch. Exactly one of File and Messages is set.
	Messages []map[string]any `yaml:"messages,omitempty"`
}

// Assertion validates final state or recorded findings.
type Assertion struct {
	// Type specifies the assertion type.
	Type string `yaml:"type"`

	// Surface is the target surface id.
	Surface string `yaml:"surface,omitempty"`

	// Component is the target component id (component_exists, resolved_text).
	Component string `yaml:"component,omitempty"`

	// Field selects "text" (default) or "label" for resolved_text.
	Field string `yaml:"field,omitempty"`

	// Path is a data-model path for data_model.
	Path string `yaml:"path,omitempty"`

	// Expect is the expected value: a string for resolved_text, any JSON
	// value for data_model, a bool for renderable.
	Expect any `yaml:"expect,omitempty"`

	// Code is a validator code for validation_error (for example E300).
	Code string `yaml:"code,omitempty"`

	// Step restricts validation_error to one step index.
	Step *int `yaml:"step,omitempty"`
}

// Step modes.
const (
	ModeImport = "import"
	ModeLive   = "live"
)

// Assertion type constants.
const (
	AssertSurfaceExists   = "surface_exists"
	AssertSurfaceAbsent   = "surface_absent"
	AssertComponentExists = "component_exists"
	AssertResolvedText    = "resolved_text"
	AssertDataModel       = "data_model"
	AssertValidationError = "validation_error"
	AssertRenderable      = "renderable"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Step files resolve relative to the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving step file paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario parses scenario YAML. basePath may be empty when no step
// references a file.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.baseDir = basePath

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// NowTime returns the parsed render time.
func (s *Scenario) NowTime() (time.Time, error) {
	if s.Now == "" {
		return DefaultNow, nil
	}
	t, err := time.Parse(time.RFC3339, s.Now)
	if err != nil {
		return time.Time{}, fmt.Errorf("now: %w", err)
	}
	return t, nil
}

// Location returns the scenario's time zone.
func (s *Scenario) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// stepPath resolves a step file against the scenario's base directory.
func (s *Scenario) stepPath(file string) string {
	if filepath.IsAbs(file) || s.baseDir == "" {
		return file
	}
	return filepath.Join(s.baseDir, file)
}

// inlineBatch converts inline YAML messages to raw JSON envelopes.
func inlineBatch(msgs []map[string]any) ([]json.RawMessage, error) {
	raws := make([]json.RawMessage, 0, len(msgs))
	for i, m := range msgs {
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if _, err := s.NowTime(); err != nil {
		return err
	}
	if _, err := s.Location(); err != nil {
		return err
	}

	for i, step := range s.Steps {
		switch step.Mode {
		case ModeImport, ModeLive:
		case "":
			return fmt.Errorf("steps[%d]: mode is required", i)
		default:
			return fmt.Errorf("steps[%d]: unknown mode %q", i, step.Mode)
		}
		if (step.File == "") == (step.Messages == nil) {
			return fmt.Errorf("steps[%d]: exactly one of file and messages is required", i)
		}
		if step.File != "" {
			if _, err := os.Stat(s.stepPath(step.File)); os.IsNotExist(err) {
				return fmt.Errorf("steps[%d]: file not found: %s", i, step.File)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Steps)); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	needSurface := func() error {
		if a.Surface == "" {
			return fmt.Errorf("assertions[%d]: surface is required for %s", index, a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertSurfaceExists, AssertSurfaceAbsent:
		return needSurface()
	case AssertComponentExists:
		if err := needSurface(); err != nil {
			return err
		}
		if a.Component == "" {
			return fmt.Errorf("assertions[%d]: component is required for component_exists", index)
		}
	case AssertResolvedText:
		if err := needSurface(); err != nil {
			return err
		}
		if a.Component == "" {
			return fmt.Errorf("assertions[%d]: component is required for resolved_text", index)
		}
		if a.Field != "" && a.Field != "text" && a.Field != "label" {
			return fmt.Errorf("assertions[%d]: field must be text or label, got %q", index, a.Field)
		}
		if _, ok := a.Expect.(string); !ok {
			return fmt.Errorf("assertions[%d]: expect must be a string for resolved_text", index)
		}
	case AssertDataModel:
		if err := needSurface(); err != nil {
			return err
		}
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for data_model", index)
		}
	case AssertValidationError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for validation_error", index)
		}
		if a.Step != nil && (*a.Step < 0 || *a.Step >= steps) {
			return fmt.Errorf("assertions[%d]: step %d out of range", index, *a.Step)
		}
	case AssertRenderable:
		if err := needSurface(); err != nil {
			return err
		}
		if _, ok := a.Expect.(bool); !ok {
			return fmt.Errorf("assertions[%d]: expect must be a bool for renderable", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
