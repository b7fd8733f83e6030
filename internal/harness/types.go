package harness

import (
	"github.com/roach88/a2ui/internal/validate"
)

// StepResult records what one step did to the store.
type StepResult struct {
	Index int    `json:"index"`
	Mode  string `json:"mode"`

	// Findings are every validator finding for the step's batch.
	Findings validate.Errors `json:"findings,omitempty"`

	// Rejected is set when an import step was refused outright.
	Rejected bool `json:"rejected,omitempty"`
}

// SurfaceSnapshot is the rendered preview tree of one surface.
type SurfaceSnapshot struct {
	ID   string `json:"id"`
	Tree string `json:"tree"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	Steps []StepResult `json:"steps"`

	// Surfaces holds a preview snapshot per surface, ordered by id.
	Surfaces []SurfaceSnapshot `json:"surfaces"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Steps:    []StepResult{},
		Surfaces: []SurfaceSnapshot{},
		Errors:   []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Findings returns the findings of every step, or of one step when step is
// non-nil.
func (r *Result) Findings(step *int) validate.Errors {
	var out validate.Errors
	for _, s := range r.Steps {
		if step != nil && s.Index != *step {
			continue
		}
		out = append(out, s.Findings...)
	}
	return out
}
