package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/a2ui/internal/datamodel"
)

// Known component keys. Everything else lands in Component.Extensions.
const (
	fieldID            = "id"
	fieldComponent     = "component"
	fieldComponentType = "componentType" // decode-only alias
	fieldChildren      = "children"
	fieldText          = "text"
	fieldLabel         = "label"
	fieldAction        = "action"
	fieldStyle         = "style"
	fieldLabelStyle    = "labelStyle"
)

var knownComponentFields = map[string]bool{
	fieldID:            true,
	fieldComponent:     true,
	fieldComponentType: true,
	fieldChildren:      true,
	fieldText:          true,
	fieldLabel:         true,
	fieldAction:        true,
	fieldStyle:         true,
	fieldLabelStyle:    true,
}

// IsKnownComponentField reports whether key is decoded into a Component
// struct field rather than Extensions.
func IsKnownComponentField(key string) bool {
	return knownComponentFields[key]
}

// Template describes children repeated over an array in the data model.
// It is carried through unchanged; no renderer expands it yet.
type Template struct {
	DataPath    string `json:"dataPath"`
	ComponentID string `json:"componentId"`
}

// ChildSpec is either an explicit ordered list of child ids or a template.
// A nil ExplicitList means the key was absent; an empty non-nil list
// round-trips as [].
type ChildSpec struct {
	ExplicitList []string
	Template     *Template
}

type childSpecWire struct {
	ExplicitList *[]string `json:"explicitList,omitempty"`
	Template     *Template `json:"template,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c ChildSpec) MarshalJSON() ([]byte, error) {
	w := childSpecWire{Template: c.Template}
	if c.ExplicitList != nil {
		list := c.ExplicitList
		w.ExplicitList = &list
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ChildSpec) UnmarshalJSON(data []byte) error {
	var w childSpecWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Template = w.Template
	c.ExplicitList = nil
	if w.ExplicitList != nil {
		c.ExplicitList = *w.ExplicitList
		if c.ExplicitList == nil {
			c.ExplicitList = []string{}
		}
	}
	return nil
}

// Event is the named event a component raises when activated.
type Event struct {
	Name    string         `json:"name"`
	Context map[string]any `json:"context,omitempty"`
}

// Action wraps the event a component raises.
type Action struct {
	Event Event `json:"event"`
}

// Component is one entry in a surface's component table.
//
// Text and Label are pointers so an explicit empty string survives a
// round trip. Style maps hold raw style values; token references inside them
// are resolved lazily by the resolve package.
type Component struct {
	ID            string
	ComponentType string
	Children      *ChildSpec
	Text          *string
	Label         *string
	Action        *Action
	Style         map[string]any
	LabelStyle    map[string]any

	// Extensions holds every key not listed above, as the raw JSON it
	// arrived with.
	Extensions map[string]json.RawMessage
}

// ChildIDs returns the explicit child list, or nil when the component has
// none. Template children are not expanded.
func (c Component) ChildIDs() []string {
	if c.Children == nil {
		return nil
	}
	return c.Children.ExplicitList
}

// Extension decodes an extension property into v. It reports false when the
// key is absent.
func (c *Component) Extension(key string, v any) (bool, error) {
	raw, ok := c.Extensions[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("extension %q: %w", key, err)
	}
	return true, nil
}

// ExtensionString returns a string extension property, or "" when it is
// absent or not a string.
func (c *Component) ExtensionString(key string) string {
	var s string
	if ok, err := c.Extension(key, &s); !ok || err != nil {
		return ""
	}
	return s
}

// SetExtension stores v as an extension property.
func (c *Component) SetExtension(key string, v any) error {
	if knownComponentFields[key] {
		return fmt.Errorf("extension %q collides with a known component field", key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("extension %q: %w", key, err)
	}
	if c.Extensions == nil {
		c.Extensions = make(map[string]json.RawMessage)
	}
	c.Extensions[key] = raw
	return nil
}

// Clone returns a deep copy of the component.
func (c Component) Clone() Component {
	out := c
	if c.Children != nil {
		ch := *c.Children
		if c.Children.ExplicitList != nil {
			ch.ExplicitList = append([]string{}, c.Children.ExplicitList...)
		}
		if c.Children.Template != nil {
			t := *c.Children.Template
			ch.Template = &t
		}
		out.Children = &ch
	}
	if c.Text != nil {
		s := *c.Text
		out.Text = &s
	}
	if c.Label != nil {
		s := *c.Label
		out.Label = &s
	}
	if c.Action != nil {
		a := *c.Action
		a.Event.Context = datamodel.Clone(c.Action.Event.Context)
		out.Action = &a
	}
	out.Style = datamodel.Clone(c.Style)
	out.LabelStyle = datamodel.Clone(c.LabelStyle)
	if c.Extensions != nil {
		out.Extensions = make(map[string]json.RawMessage, len(c.Extensions))
		for k, v := range c.Extensions {
			out.Extensions[k] = append(json.RawMessage{}, v...)
		}
	}
	return out
}

// MarshalJSON writes known fields and extensions into one object. Keys
// come out sorted because encoding/json sorts map keys.
func (c Component) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(c.Extensions)+8)
	for k, v := range c.Extensions {
		obj[k] = v
	}

	put := func(key string, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("component %q field %s: %w", c.ID, key, err)
		}
		obj[key] = raw
		return nil
	}

	if err := put(fieldID, c.ID); err != nil {
		return nil, err
	}
	if err := put(fieldComponent, c.ComponentType); err != nil {
		return nil, err
	}
	if c.Children != nil {
		if err := put(fieldChildren, c.Children); err != nil {
			return nil, err
		}
	}
	if c.Text != nil {
		if err := put(fieldText, *c.Text); err != nil {
			return nil, err
		}
	}
	if c.Label != nil {
		if err := put(fieldLabel, *c.Label); err != nil {
			return nil, err
		}
	}
	if c.Action != nil {
		if err := put(fieldAction, c.Action); err != nil {
			return nil, err
		}
	}
	if c.Style != nil {
		if err := put(fieldStyle, c.Style); err != nil {
			return nil, err
		}
	}
	if c.LabelStyle != nil {
		if err := put(fieldLabelStyle, c.LabelStyle); err != nil {
			return nil, err
		}
	}

	return json.Marshal(obj)
}

// UnmarshalJSON splits the object into known fields and extensions.
func (c *Component) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	*c = Component{}
	field := func(key string, v any) error {
		raw, ok := obj[key]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("component field %s: %w", key, err)
		}
		return nil
	}

	if err := field(fieldID, &c.ID); err != nil {
		return err
	}
	if err := field(fieldComponent, &c.ComponentType); err != nil {
		return err
	}
	if c.ComponentType == "" {
		if err := field(fieldComponentType, &c.ComponentType); err != nil {
			return err
		}
	}
	if raw, ok := obj[fieldChildren]; ok && !isNull(raw) {
		c.Children = &ChildSpec{}
		if err := json.Unmarshal(raw, c.Children); err != nil {
			return fmt.Errorf("component field %s: %w", fieldChildren, err)
		}
	}
	if raw, ok := obj[fieldText]; ok && !isNull(raw) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("component field %s: %w", fieldText, err)
		}
		c.Text = &s
	}
	if raw, ok := obj[fieldLabel]; ok && !isNull(raw) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("component field %s: %w", fieldLabel, err)
		}
		c.Label = &s
	}
	if raw, ok := obj[fieldAction]; ok && !isNull(raw) {
		c.Action = &Action{}
		if err := json.Unmarshal(raw, c.Action); err != nil {
			return fmt.Errorf("component field %s: %w", fieldAction, err)
		}
	}
	if err := field(fieldStyle, &c.Style); err != nil {
		return err
	}
	if err := field(fieldLabelStyle, &c.LabelStyle); err != nil {
		return err
	}

	for k, v := range obj {
		if knownComponentFields[k] {
			continue
		}
		if c.Extensions == nil {
			c.Extensions = make(map[string]json.RawMessage)
		}
		c.Extensions[k] = append(json.RawMessage{}, v...)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
