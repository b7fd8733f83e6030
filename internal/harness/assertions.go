package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, h *Harness) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, h); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, h *Harness) error {
	switch a.Type {
	case AssertSurfaceExists:
		return assertSurfaceExists(h, a)
	case AssertSurfaceAbsent:
		return assertSurfaceAbsent(h, a)
	case AssertComponentExists:
		return assertComponentExists(h, a)
	case AssertResolvedText:
		return assertResolvedText(h, a)
	case AssertDataModel:
		return assertDataModel(h, a)
	case AssertValidationError:
		return assertValidationError(result, a)
	case AssertRenderable:
		return assertRenderable(h, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertSurfaceExists(h *Harness, a Assertion) error {
	if _, ok := h.store.Get(a.Surface); ok {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("surface %q exists", a.Surface),
		Actual:   fmt.Sprintf("surfaces %v", h.store.Surfaces()),
	}
}

func assertSurfaceAbsent(h *Harness, a Assertion) error {
	if _, ok := h.store.Get(a.Surface); !ok {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("surface %q absent", a.Surface),
		Actual:   "surface exists",
	}
}

func assertComponentExists(h *Harness, a Assertion) error {
	if h.store.HasComponent(a.Surface, a.Component) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("component %q on surface %q", a.Component, a.Surface),
		Actual:   "not found",
	}
}

func assertResolvedText(h *Harness, a Assertion) error {
	s, ok := h.store.Get(a.Surface)
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("surface %q", a.Surface), Actual: "surface not found"}
	}
	c, ok := s.Component(a.Component)
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("component %q", a.Component), Actual: "component not found"}
	}

	field := c.Text
	if a.Field == "label" {
		field = c.Label
	}
	got := h.resolver.ResolveText(field, s.DataModel)
	want, _ := a.Expect.(string)
	if got == want {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%q", want),
		Actual:   fmt.Sprintf("%q", got),
	}
}

func assertDataModel(h *Harness, a Assertion) error {
	s, ok := h.store.Get(a.Surface)
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("surface %q", a.Surface), Actual: "surface not found"}
	}
	got, found := s.Lookup(a.Path)
	if !found {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("value at %s", a.Path), Actual: "path not found"}
	}

	gotNorm, err := normalize(got)
	if err != nil {
		return err
	}
	wantNorm, err := normalize(a.Expect)
	if err != nil {
		return err
	}
	if reflect.DeepEqual(gotNorm, wantNorm) {
		return nil
	}
	gotJSON, _ := json.Marshal(gotNorm)
	wantJSON, _ := json.Marshal(wantNorm)
	return &AssertionError{
		Type:     a.Type,
		Expected: string(wantJSON),
		Actual:   string(gotJSON),
	}
}

// normalize round-trips v through JSON so YAML ints and JSON float64s
// compare equal.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return out, nil
}

func assertValidationError(result *Result, a Assertion) error {
	findings := result.Findings(a.Step)
	var codes []string
	for _, f := range findings {
		if f.Code == a.Code {
			return nil
		}
		codes = append(codes, f.Code)
	}
	where := "any step"
	if a.Step != nil {
		where = fmt.Sprintf("step %d", *a.Step)
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("finding %s in %s", a.Code, where),
		Actual:   fmt.Sprintf("codes %v", codes),
	}
}

func assertRenderable(h *Harness, a Assertion) error {
	want, _ := a.Expect.(bool)
	got := false
	if s, ok := h.store.Get(a.Surface); ok {
		got = s.Renderable()
	}
	if got == want {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("renderable=%t", want),
		Actual:   fmt.Sprintf("renderable=%t", got),
	}
}
