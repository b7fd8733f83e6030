package surface

import (
	"sort"

	"github.com/roach88/a2ui/internal/protocol"
)

// ComponentTable is a flat, id-keyed registry of component definitions.
// Upserting an id replaces the previous definition entirely.
type ComponentTable struct {
	byID map[string]protocol.Component
}

// NewComponentTable creates an empty table.
func NewComponentTable() *ComponentTable {
	return &ComponentTable{byID: make(map[string]protocol.Component)}
}

// Upsert stores a copy of c under c.ID.
func (t *ComponentTable) Upsert(c protocol.Component) {
	t.byID[c.ID] = c.Clone()
}

// Get returns the component with the given id.
func (t *ComponentTable) Get(id string) (protocol.Component, bool) {
	c, ok := t.byID[id]
	return c, ok
}

// Has reports whether id is present.
func (t *ComponentTable) Has(id string) bool {
	_, ok := t.byID[id]
	return ok
}

// Len returns the number of components.
func (t *ComponentTable) Len() int {
	return len(t.byID)
}

// IDs returns every id in sorted order.
func (t *ComponentTable) IDs() []string {
	ids := make([]string, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DanglingRef is an explicitList entry that names a missing component.
type DanglingRef struct {
	Parent string
	Child  string
}

// DanglingRefs lists every child reference that does not resolve, ordered
// by parent id and then list position.
func (t *ComponentTable) DanglingRefs() []DanglingRef {
	var out []DanglingRef
	for _, id := range t.IDs() {
		c := t.byID[id]
		for _, child := range c.ChildIDs() {
			if !t.Has(child) {
				out = append(out, DanglingRef{Parent: id, Child: child})
			}
		}
	}
	return out
}

// copy returns a table sharing the stored definitions. Definitions are
// never mutated in place, so sharing is safe.
func (t *ComponentTable) copy() *ComponentTable {
	out := &ComponentTable{byID: make(map[string]protocol.Component, len(t.byID))}
	for k, v := range t.byID {
		out.byID[k] = v
	}
	return out
}
