package validate

import (
	"errors"
	"fmt"
	"strings"
)

// Validation error codes.
//
// E2xx are structural: the batch is malformed and must not reach a store
// during import. E3xx are referential: the batch is well formed but refers
// to things that do not exist. E4xx come from catalog checks and are
// structural.
const (
	// Batch and envelope (E200-E204)
	ErrEmptyBatch        = "E200" // batch is empty or not a sequence
	ErrUnparseable       = "E201" // batch or envelope is not valid JSON
	ErrEnvelopeNotObject = "E202" // envelope is not a JSON object
	ErrNoMessageKind     = "E203" // none of the four message keys present
	ErrAmbiguousEnvelope = "E204" // more than one message key present

	// Message payloads (E210-E219)
	ErrPayloadNotObject   = "E210" // message payload is not an object
	ErrMissingSurfaceID   = "E211" // surfaceId missing, empty or not a string
	ErrComponentsNotArray = "E212" // updateComponents.components is not an array
	ErrPathNotString      = "E213" // updateDataModel.path is not a string
	ErrCatalogIDNotString = "E214" // createSurface.catalogId is not a string
	ErrSendDataModelType  = "E215" // createSurface.sendDataModel is not a boolean
	ErrTokensNotObject    = "E216" // createSurface.designTokens is not an object
	ErrInvalidToken       = "E217" // design token is not a {value, collection} object of strings

	// Components (E220-E229)
	ErrComponentNotObject   = "E220" // component is not an object
	ErrMissingComponentID   = "E221" // component id missing, empty or not a string
	ErrMissingComponentType = "E222" // component type missing, empty or not a string
	ErrChildrenNotObject    = "E223" // children is not an object
	ErrExplicitListNotArray = "E224" // children.explicitList is not an array
	ErrChildIDNotString     = "E225" // explicitList entry is not a non-empty string
	ErrActionEventName      = "E226" // action without a non-empty event name, or a non-object context
	ErrTextNotString        = "E227" // text or label is not a string
	ErrStyleNotObject       = "E228" // style or labelStyle is not an object
	ErrInvalidTemplate      = "E229" // children.template is not an object of strings

	// Referential (E300-E309)
	ErrDanglingChild           = "E300" // explicitList references an unknown id
	ErrMissingRoot             = "E301" // no component with id "root"
	ErrDuplicateRoot           = "E302" // more than one component with id "root"
	ErrMissingCreateSurface    = "E303" // export batch without createSurface
	ErrMissingUpdateComponents = "E304" // export batch without updateComponents

	// Catalog (E400-E409)
	ErrUnknownComponentType = "E400" // type not in the surface's catalog
	ErrCatalogSchema        = "E401" // component violates its catalog schema
	ErrUnknownCatalog       = "E402" // createSurface names an unknown catalog (warning)
)

// Kind classifies a ValidationError.
type Kind string

const (
	KindStructural  Kind = "structural"
	KindReferential Kind = "referential"
)

// ValidationError is one finding against a batch.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Kind    Kind   `json:"kind"`

	// Warning marks findings that never block application.
	Warning bool `json:"warning,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

// IsStructural reports whether the finding is a blocking structural error.
func (e ValidationError) IsStructural() bool {
	return e.Kind == KindStructural && !e.Warning
}

// Errors is the full result of validating a batch. It implements error so
// callers can return it directly and recover it with errors.As.
type Errors []ValidationError

// Error implements the error interface.
func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Err returns es as an error, or nil when it holds no blocking findings.
func (es Errors) Err() error {
	if len(es.Blocking()) == 0 {
		return nil
	}
	return es
}

// Blocking returns every finding that is not a warning.
func (es Errors) Blocking() Errors {
	return es.filter(func(e ValidationError) bool { return !e.Warning })
}

// Structural returns the blocking structural errors.
func (es Errors) Structural() Errors {
	return es.filter(ValidationError.IsStructural)
}

// Referential returns the referential findings, warnings included.
func (es Errors) Referential() Errors {
	return es.filter(func(e ValidationError) bool { return e.Kind == KindReferential })
}

// Warnings returns the non-blocking findings.
func (es Errors) Warnings() Errors {
	return es.filter(func(e ValidationError) bool { return e.Warning })
}

// HasStructural reports whether any blocking structural error is present.
func (es Errors) HasStructural() bool {
	return len(es.Structural()) > 0
}

// ForMessage returns the findings whose path starts at messages[i].
func (es Errors) ForMessage(i int) Errors {
	prefix := fmt.Sprintf("messages[%d]", i)
	return es.filter(func(e ValidationError) bool {
		return e.Path == prefix || strings.HasPrefix(e.Path, prefix+".") || strings.HasPrefix(e.Path, prefix+"[")
	})
}

func (es Errors) filter(keep func(ValidationError) bool) Errors {
	var out Errors
	for _, e := range es {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// AsErrors extracts validation findings from err.
func AsErrors(err error) (Errors, bool) {
	var es Errors
	if errors.As(err, &es) {
		return es, true
	}
	return nil, false
}
