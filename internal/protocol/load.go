package protocol

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"
)

// Format identifies how a batch is encoded on disk.
type Format int

const (
	// FormatJSON is a JSON array of envelopes.
	FormatJSON Format = iota
	// FormatJSONL is one envelope per line.
	FormatJSONL
	// FormatCUE is a CUE file whose top-level messages field is a list of
	// envelopes.
	FormatCUE
)

// Load error codes.
const (
	ErrCodeRead        = "E001"
	ErrCodeParse       = "E002"
	ErrCodeCUEBuild    = "E003"
	ErrCodeNoMessages  = "E004"
	ErrCodeUnsupported = "E005"
)

// LoadError reports a batch file that could not be read or parsed.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FormatForPath picks the format from a file extension. Anything that is
// not .jsonl or .cue is treated as JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".cue":
		return FormatCUE
	default:
		return FormatJSON
	}
}

// LoadFile reads a batch file into raw envelopes.
func LoadFile(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Message: err.Error()}
	}
	return LoadBytes(data, FormatForPath(path), path)
}

// LoadBytes parses a batch in the given format. name is used in CUE
// positions and may be empty.
func LoadBytes(data []byte, format Format, name string) ([]json.RawMessage, error) {
	switch format {
	case FormatJSON, FormatJSONL:
		raws, err := SplitBatch(data)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeParse, Message: err.Error()}
		}
		return raws, nil
	case FormatCUE:
		return loadCUE(data, name)
	default:
		return nil, &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported format %d", format)}
	}
}

func loadCUE(data []byte, name string) ([]json.RawMessage, error) {
	ctx := cuecontext.New()
	var opts []cue.BuildOption
	if name != "" {
		opts = append(opts, cue.Filename(name))
	}
	value := ctx.CompileBytes(data, opts...)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeCUEBuild, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	messages := value.LookupPath(cue.ParsePath("messages"))
	if !messages.Exists() {
		return nil, &LoadError{Code: ErrCodeNoMessages, Message: "no top-level messages field", Pos: value.Pos()}
	}
	if err := messages.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Code: ErrCodeCUEBuild, Message: fmt.Sprintf("messages: %v", err), Pos: messages.Pos()}
	}
	out, err := messages.MarshalJSON()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeCUEBuild, Message: fmt.Sprintf("messages: %v", err), Pos: messages.Pos()}
	}
	raws, err := SplitBatch(out)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: err.Error(), Pos: messages.Pos()}
	}
	return raws, nil
}
