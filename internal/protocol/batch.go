package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

type decodeOptions struct {
	legacyDataModel bool
}

// DecodeOption configures batch decoding.
type DecodeOption func(*decodeOptions)

// WithLegacyDataModel accepts {"updateDataModel": {"surfaceId": ..,
// "dataModel": {...}}} as a root replace. Off by default.
func WithLegacyDataModel() DecodeOption {
	return func(o *decodeOptions) {
		o.legacyDataModel = true
	}
}

// SplitBatch splits a batch into its raw envelopes. data may be a JSON array
// or a stream of JSON values (one per line, as written by JSON-lines
// producers). Whitespace-only input yields an empty slice.
func SplitBatch(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []json.RawMessage{}, nil
	}

	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("parse batch: %w", err)
		}
		if raws == nil {
			raws = []json.RawMessage{}
		}
		return raws, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	raws := []json.RawMessage{}
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse batch line %d: %w", len(raws)+1, err)
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

// DecodeEnvelope decodes a single raw envelope.
func DecodeEnvelope(raw json.RawMessage, opts ...DecodeOption) (Envelope, error) {
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}
	var env Envelope
	if err := env.decode(raw, o); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// DecodeBatch decodes every envelope in a batch. The first failure aborts
// decoding; callers wanting per-envelope diagnostics run the validate
// package first.
func DecodeBatch(data []byte, opts ...DecodeOption) ([]Envelope, error) {
	raws, err := SplitBatch(data)
	if err != nil {
		return nil, err
	}
	return DecodeRaw(raws, opts...)
}

// DecodeRaw decodes already-split envelopes.
func DecodeRaw(raws []json.RawMessage, opts ...DecodeOption) ([]Envelope, error) {
	envs := make([]Envelope, 0, len(raws))
	for i, raw := range raws {
		env, err := DecodeEnvelope(raw, opts...)
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		envs = append(envs, env)
	}
	return envs, nil
}

// DecodeGeneric decodes raw envelopes into plain JSON values
// (map[string]any, []any, float64, string, bool, nil). The validator
// works on this form so it can report type mismatches the typed decoder
// would reject outright.
func DecodeGeneric(raws []json.RawMessage) ([]any, error) {
	out := make([]any, len(raws))
	for i, raw := range raws {
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
	}
	return out, nil
}

// EncodeBatch writes envelopes as a JSON array.
func EncodeBatch(envs []Envelope) ([]byte, error) {
	if envs == nil {
		envs = []Envelope{}
	}
	data, err := json.Marshal(envs)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	return data, nil
}
