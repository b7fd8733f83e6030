// Package catalog checks components against a component catalog: a set of
// known component types, each with a JSON Schema for its properties.
//
// The basic catalog is embedded. Catalog files have the shape
//
//	{"catalogId": "basic", "components": {"Text": {<schema>}, ...}, "$defs": {...}}
//
// Each component schema is compiled with the file's $defs in scope.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roach88/a2ui/internal/protocol"
)

// BasicID is the id of the embedded catalog.
const BasicID = "basic"

//go:embed catalogs/basic.json
var basicJSON []byte

// Violation is one reason a component does not satisfy its catalog entry.
type Violation struct {
	// Field is a JSON pointer into the component ("" for the component
	// itself).
	Field   string
	Message string
	Unknown bool // the component type is not in the catalog
}

// Catalog is a compiled component catalog. Safe for concurrent use.
type Catalog struct {
	id      string
	schemas map[string]*jsonschema.Schema
}

type catalogFile struct {
	CatalogID  string                     `json:"catalogId"`
	Components map[string]json.RawMessage `json:"components"`
	Defs       map[string]json.RawMessage `json:"$defs,omitempty"`
}

// Parse compiles a catalog file.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if file.CatalogID == "" {
		return nil, fmt.Errorf("parse catalog: missing catalogId")
	}
	if len(file.Components) == 0 {
		return nil, fmt.Errorf("catalog %q: no components", file.CatalogID)
	}

	cat := &Catalog{id: file.CatalogID, schemas: make(map[string]*jsonschema.Schema, len(file.Components))}
	for typ, raw := range file.Components {
		schema, err := compileComponent(file.CatalogID, typ, raw, file.Defs)
		if err != nil {
			return nil, err
		}
		cat.schemas[typ] = schema
	}
	return cat, nil
}

func compileComponent(catalogID, typ string, raw json.RawMessage, defs map[string]json.RawMessage) (*jsonschema.Schema, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("catalog %q component %s: %w", catalogID, typ, err)
	}
	if len(defs) > 0 {
		defsRaw, err := json.Marshal(defs)
		if err != nil {
			return nil, fmt.Errorf("catalog %q component %s: %w", catalogID, typ, err)
		}
		doc["$defs"] = defsRaw
	}
	schemaDoc, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("catalog %q component %s: %w", catalogID, typ, err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://a2ui.schemas.local/catalog/%s/%s.schema.json", catalogID, typ)
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaDoc)); err != nil {
		return nil, fmt.Errorf("catalog %q component %s: schema load failed: %w", catalogID, typ, err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("catalog %q component %s: schema compile failed: %w", catalogID, typ, err)
	}
	return schema, nil
}

var (
	basicOnce sync.Once
	basicCat  *Catalog
	basicErr  error
)

// Basic returns the embedded basic catalog.
func Basic() (*Catalog, error) {
	basicOnce.Do(func() {
		basicCat, basicErr = Parse(basicJSON)
	})
	return basicCat, basicErr
}

// ID returns the catalog id.
func (c *Catalog) ID() string { return c.id }

// Types returns the known component types in sorted order.
func (c *Catalog) Types() []string {
	types := make([]string, 0, len(c.schemas))
	for t := range c.schemas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Has reports whether typ is a known component type.
func (c *Catalog) Has(typ string) bool {
	_, ok := c.schemas[typ]
	return ok
}

// Check validates one component. The result is empty when the component
// satisfies its schema.
func (c *Catalog) Check(comp protocol.Component) []Violation {
	schema, ok := c.schemas[comp.ComponentType]
	if !ok {
		return []Violation{{
			Field:   "/component",
			Message: fmt.Sprintf("unknown component type %q in catalog %q", comp.ComponentType, c.id),
			Unknown: true,
		}}
	}

	raw, err := json.Marshal(comp)
	if err != nil {
		return []Violation{{Message: err.Error()}}
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return []Violation{{Message: err.Error()}}
	}
	return c.checkDoc(schema, doc)
}

// CheckValue validates a generic decoded component object.
func (c *Catalog) CheckValue(typ string, doc map[string]any) []Violation {
	schema, ok := c.schemas[typ]
	if !ok {
		return []Violation{{
			Field:   "/component",
			Message: fmt.Sprintf("unknown component type %q in catalog %q", typ, c.id),
			Unknown: true,
		}}
	}
	return c.checkDoc(schema, doc)
}

func (c *Catalog) checkDoc(schema *jsonschema.Schema, doc any) []Violation {
	err := schema.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []Violation{{Message: err.Error()}}
	}

	var out []Violation
	collectLeaves(ve, &out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// collectLeaves flattens the cause tree to the errors that name a concrete
// keyword failure.
func collectLeaves(ve *jsonschema.ValidationError, out *[]Violation) {
	if len(ve.Causes) == 0 {
		*out = append(*out, Violation{Field: ve.InstanceLocation, Message: strings.TrimSpace(ve.Message)})
		return
	}
	for _, cause := range ve.Causes {
		collectLeaves(cause, out)
	}
}

// Registry resolves catalog ids to compiled catalogs.
type Registry struct {
	mu       sync.RWMutex
	catalogs map[string]*Catalog
}

// NewRegistry returns a registry holding the basic catalog.
func NewRegistry() (*Registry, error) {
	basic, err := Basic()
	if err != nil {
		return nil, err
	}
	r := &Registry{catalogs: make(map[string]*Catalog)}
	r.Register(basic)
	return r, nil
}

// Register adds or replaces a catalog.
func (r *Registry) Register(c *Catalog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalogs[c.id] = c
}

// Lookup returns the catalog for id.
func (r *Registry) Lookup(id string) (*Catalog, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.catalogs[id]
	return c, ok
}
