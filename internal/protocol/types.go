package protocol

import (
	"encoding/json"
	"fmt"
)

// DefaultRootID is the component id every renderable surface starts from.
const DefaultRootID = "root"

// Kind identifies which of the four message kinds an envelope carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindCreateSurface
	KindUpdateComponents
	KindUpdateDataModel
	KindDeleteSurface
)

// Wire keys for each message kind.
const (
	KeyCreateSurface    = "createSurface"
	KeyUpdateComponents = "updateComponents"
	KeyUpdateDataModel  = "updateDataModel"
	KeyDeleteSurface    = "deleteSurface"
)

// MessageKeys lists the envelope keys in wire order.
var MessageKeys = []string{KeyCreateSurface, KeyUpdateComponents, KeyUpdateDataModel, KeyDeleteSurface}

// String returns the wire key for the kind.
func (k Kind) String() string {
	switch k {
	case KindCreateSurface:
		return KeyCreateSurface
	case KindUpdateComponents:
		return KeyUpdateComponents
	case KindUpdateDataModel:
		return KeyUpdateDataModel
	case KindDeleteSurface:
		return KeyDeleteSurface
	default:
		return "unknown"
	}
}

// KindForKey maps a wire key to its Kind. Unknown keys map to KindUnknown.
func KindForKey(key string) Kind {
	switch key {
	case KeyCreateSurface:
		return KindCreateSurface
	case KeyUpdateComponents:
		return KindUpdateComponents
	case KeyUpdateDataModel:
		return KindUpdateDataModel
	case KeyDeleteSurface:
		return KindDeleteSurface
	default:
		return KindUnknown
	}
}

// DesignToken is a named style value. Collection is metadata only and never
// affects resolution.
type DesignToken struct {
	Value      string `json:"value"`
	Collection string `json:"collection"`
}

// Message is a sealed interface implemented by the four message kinds.
type Message interface {
	Kind() Kind
	Surface() string
	message()
}

// CreateSurface starts (or restarts) a surface.
type CreateSurface struct {
	SurfaceID     string                 `json:"surfaceId"`
	CatalogID     string                 `json:"catalogId,omitempty"`
	SendDataModel *bool                  `json:"sendDataModel,omitempty"`
	DesignTokens  map[string]DesignToken `json:"designTokens,omitempty"`
}

func (*CreateSurface) Kind() Kind        { return KindCreateSurface }
func (m *CreateSurface) Surface() string { return m.SurfaceID }
func (*CreateSurface) message()          {}

// UpdateComponents upserts component definitions by id.
type UpdateComponents struct {
	SurfaceID  string      `json:"surfaceId"`
	Components []Component `json:"components"`
}

func (*UpdateComponents) Kind() Kind        { return KindUpdateComponents }
func (m *UpdateComponents) Surface() string { return m.SurfaceID }
func (*UpdateComponents) message()          {}

// UpdateDataModel writes a value into the surface data model. An empty Path
// or "/" replaces the whole model.
type UpdateDataModel struct {
	SurfaceID string
	Path      string
	Value     any

	// HasValue distinguishes an explicit null value from an absent one.
	HasValue bool
}

func (*UpdateDataModel) Kind() Kind        { return KindUpdateDataModel }
func (m *UpdateDataModel) Surface() string { return m.SurfaceID }
func (*UpdateDataModel) message()          {}

// IsRootReplace reports whether the message replaces the entire data model.
func (m *UpdateDataModel) IsRootReplace() bool {
	return m.Path == "" || m.Path == "/"
}

type updateDataModelWire struct {
	SurfaceID string          `json:"surfaceId"`
	Path      string          `json:"path,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
	DataModel json.RawMessage `json:"dataModel,omitempty"`
}

// MarshalJSON emits value only when HasValue is set, keeping null distinct
// from absent.
func (m UpdateDataModel) MarshalJSON() ([]byte, error) {
	w := updateDataModelWire{SurfaceID: m.SurfaceID, Path: m.Path}
	if m.HasValue {
		raw, err := json.Marshal(m.Value)
		if err != nil {
			return nil, fmt.Errorf("updateDataModel value: %w", err)
		}
		w.Value = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. The legacy dataModel alias is
// handled by DecodeEnvelope, not here.
func (m *UpdateDataModel) UnmarshalJSON(data []byte) error {
	var w updateDataModelWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.SurfaceID = w.SurfaceID
	m.Path = w.Path
	m.Value = nil
	m.HasValue = len(w.Value) > 0
	if m.HasValue {
		if err := json.Unmarshal(w.Value, &m.Value); err != nil {
			return fmt.Errorf("updateDataModel value: %w", err)
		}
	}
	return nil
}

// DeleteSurface removes a surface.
type DeleteSurface struct {
	SurfaceID string `json:"surfaceId"`
}

func (*DeleteSurface) Kind() Kind        { return KindDeleteSurface }
func (m *DeleteSurface) Surface() string { return m.SurfaceID }
func (*DeleteSurface) message()          {}
