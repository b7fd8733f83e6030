package surface

import (
	"errors"
	"fmt"

	"github.com/roach88/a2ui/internal/validate"
)

var (
	// ErrSurfaceNotFound is returned for messages addressed to a surface
	// that does not exist. The message is ignored.
	ErrSurfaceNotFound = errors.New("surface not found")

	// ErrDataModelNotObject is returned when a root data-model replace
	// carries a value that is not an object. The data model is unchanged.
	ErrDataModelNotObject = errors.New("root data model must be an object")

	// ErrStoreClosed is returned by every mutation after Close.
	ErrStoreClosed = errors.New("store closed")
)

// ImportError reports a batch rejected during import. Nothing from the
// batch was applied.
type ImportError struct {
	// Errors holds every finding, including non-blocking ones.
	Errors validate.Errors
}

// Error implements the error interface.
func (e *ImportError) Error() string {
	structural := e.Errors.Structural()
	if len(structural) == 1 {
		return fmt.Sprintf("import rejected: %s", structural[0].Error())
	}
	return fmt.Sprintf("import rejected: %d structural errors (first: %s)", len(structural), firstError(structural))
}

// Unwrap exposes the findings to errors.As.
func (e *ImportError) Unwrap() error {
	return e.Errors
}

func firstError(es validate.Errors) string {
	if len(es) == 0 {
		return "none"
	}
	return es[0].Error()
}

// IsImportError reports whether err is a rejected import.
// Uses errors.As to handle wrapped errors.
func IsImportError(err error) bool {
	var ie *ImportError
	return errors.As(err, &ie)
}

// MessageError ties an apply failure to its position in a batch.
type MessageError struct {
	Index     int
	SurfaceID string
	Err       error
}

// Error implements the error interface.
func (e *MessageError) Error() string {
	return fmt.Sprintf("messages[%d] (surface %q): %v", e.Index, e.SurfaceID, e.Err)
}

// Unwrap returns the underlying error.
func (e *MessageError) Unwrap() error {
	return e.Err
}
