package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/a2ui/internal/catalog"
	"github.com/roach88/a2ui/internal/preview"
	"github.com/roach88/a2ui/internal/protocol"
	"github.com/roach88/a2ui/internal/resolve"
	"github.com/roach88/a2ui/internal/surface"
	"github.com/roach88/a2ui/internal/testutil"
	"github.com/roach88/a2ui/internal/validate"
)

// Harness is the test execution engine.
// It runs scenarios against a fresh store with a fixed render clock.
type Harness struct {
	store    *surface.Store
	resolver *resolve.Resolver
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against its own store. The render clock is frozen at
// the scenario's now, so template output is reproducible.
//
// Execution flow:
// 1. Create a store wired to the built-in catalogs
// 2. Apply each step in its mode, recording findings
// 3. Snapshot every surface's preview tree
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	now, err := scenario.NowTime()
	if err != nil {
		return nil, err
	}
	loc, err := scenario.Location()
	if err != nil {
		return nil, err
	}

	registry, err := catalog.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalogs: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	storeOpts := []surface.Option{
		surface.WithLogger(logger),
		surface.WithClock(testutil.NewSeqClock()),
		surface.WithValidateOptions(validate.WithRegistry(registry)),
	}
	if scenario.LegacyDataModel {
		storeOpts = append(storeOpts, surface.WithDecodeOptions(protocol.WithLegacyDataModel()))
	}
	st := surface.New(storeOpts...)
	defer st.Close()

	h := &Harness{
		store: st,
		resolver: resolve.New(
			resolve.WithClock(testutil.NewFixedClock(now)),
			resolve.WithLocation(loc),
			resolve.WithLogger(logger),
		),
		logger: logger,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		sr, err := h.executeStep(scenario, i, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		result.Steps = append(result.Steps, sr)
	}

	if err := h.snapshot(result); err != nil {
		return nil, err
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, h) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) executeStep(scenario *Scenario, index int, step Step) (StepResult, error) {
	var raws []json.RawMessage
	var err error
	if step.File != "" {
		raws, err = protocol.LoadFile(scenario.stepPath(step.File))
	} else {
		raws, err = inlineBatch(step.Messages)
	}
	if err != nil {
		return StepResult{}, err
	}

	sr := StepResult{Index: index, Mode: step.Mode}
	switch step.Mode {
	case ModeImport:
		report, err := h.store.Import(raws)
		sr.Findings = report
		if err != nil {
			if !surface.IsImportError(err) {
				return StepResult{}, err
			}
			sr.Rejected = true
		}
	case ModeLive:
		sr.Findings = h.store.ApplyLive(raws)
	default:
		return StepResult{}, fmt.Errorf("unknown mode %q", step.Mode)
	}
	return sr, nil
}

func (h *Harness) snapshot(result *Result) error {
	for _, id := range h.store.Surfaces() {
		s, ok := h.store.Get(id)
		if !ok {
			continue
		}
		var buf bytes.Buffer
		if err := preview.WriteTree(&buf, preview.Build(s, h.resolver, preview.WithLogger(h.logger))); err != nil {
			return fmt.Errorf("preview %s: %w", id, err)
		}
		result.Surfaces = append(result.Surfaces, SurfaceSnapshot{ID: id, Tree: buf.String()})
	}
	return nil
}

// Snapshot renders every surface tree as one document for golden comparison.
func Snapshot(scenario *Scenario, result *Result) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n", scenario.Name)
	for _, sr := range result.Steps {
		fmt.Fprintf(&buf, "\nstep %d (%s)", sr.Index, sr.Mode)
		if sr.Rejected {
			buf.WriteString(" rejected")
		}
		buf.WriteString("\n")
		for _, f := range sr.Findings {
			fmt.Fprintf(&buf, "  %s\n", f.Error())
		}
	}
	for _, s := range result.Surfaces {
		fmt.Fprintf(&buf, "\n== %s\n%s", s.ID, s.Tree)
	}
	return buf.Bytes()
}
