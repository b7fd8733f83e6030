package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoMessageKind is returned when an envelope has none of the four keys.
	ErrNoMessageKind = errors.New("envelope has no recognized message kind")

	// ErrAmbiguousEnvelope is returned when an envelope has more than one key.
	ErrAmbiguousEnvelope = errors.New("envelope has more than one message kind")
)

// Envelope carries exactly one Message.
type Envelope struct {
	Message Message
}

// Wrap builds an envelope around m.
func Wrap(m Message) Envelope {
	return Envelope{Message: m}
}

// Kind returns the kind of the carried message, or KindUnknown for an empty
// envelope.
func (e Envelope) Kind() Kind {
	if e.Message == nil {
		return KindUnknown
	}
	return e.Message.Kind()
}

// SurfaceID returns the target surface of the carried message.
func (e Envelope) SurfaceID() string {
	if e.Message == nil {
		return ""
	}
	return e.Message.Surface()
}

// PopulatedKinds returns the message keys of obj whose value is present and
// not null, in wire order.
func PopulatedKinds(obj map[string]json.RawMessage) []string {
	var keys []string
	for _, k := range MessageKeys {
		raw, ok := obj[k]
		if !ok || isNull(raw) {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// MarshalJSON implements json.Marshaler.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Message == nil {
		return nil, ErrNoMessageKind
	}
	return json.Marshal(map[string]Message{e.Message.Kind().String(): e.Message})
}

// UnmarshalJSON implements json.Unmarshaler. Keys other than the four
// message kinds are ignored.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	return e.decode(data, decodeOptions{})
}

func (e *Envelope) decode(data []byte, opts decodeOptions) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("envelope: %w", err)
	}

	keys := PopulatedKinds(obj)
	switch len(keys) {
	case 0:
		return ErrNoMessageKind
	case 1:
	default:
		return fmt.Errorf("%w: %s", ErrAmbiguousEnvelope, strings.Join(keys, ", "))
	}

	raw := obj[keys[0]]
	var msg Message
	switch KindForKey(keys[0]) {
	case KindCreateSurface:
		msg = &CreateSurface{}
	case KindUpdateComponents:
		msg = &UpdateComponents{}
	case KindUpdateDataModel:
		udm := &UpdateDataModel{}
		if err := json.Unmarshal(raw, udm); err != nil {
			return fmt.Errorf("%s: %w", keys[0], err)
		}
		if opts.legacyDataModel {
			if err := applyLegacyDataModel(udm, raw); err != nil {
				return fmt.Errorf("%s: %w", keys[0], err)
			}
		}
		e.Message = udm
		return nil
	case KindDeleteSurface:
		msg = &DeleteSurface{}
	}

	if err := json.Unmarshal(raw, msg); err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	e.Message = msg
	return nil
}

// applyLegacyDataModel treats a sibling dataModel key as a root replace, but
// only when neither value nor path was given.
func applyLegacyDataModel(udm *UpdateDataModel, raw json.RawMessage) error {
	if udm.HasValue || udm.Path != "" {
		return nil
	}
	var w updateDataModelWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return err
	}
	if len(w.DataModel) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(w.DataModel, &v); err != nil {
		return fmt.Errorf("dataModel: %w", err)
	}
	udm.Path = "/"
	udm.Value = v
	udm.HasValue = true
	return nil
}
