package surface

import (
	"github.com/roach88/a2ui/internal/datamodel"
	"github.com/roach88/a2ui/internal/protocol"
)

// Surface is one independently addressable screen of UI state. Values
// returned by Store are snapshots and must not be mutated.
type Surface struct {
	ID            string
	RootID        string
	CatalogID     string
	SendDataModel bool

	Tokens     map[string]protocol.DesignToken
	Components *ComponentTable
	DataModel  map[string]any
}

func newSurface(m *protocol.CreateSurface) *Surface {
	tokens := make(map[string]protocol.DesignToken, len(m.DesignTokens))
	for k, v := range m.DesignTokens {
		tokens[k] = v
	}
	s := &Surface{
		ID:         m.SurfaceID,
		RootID:     protocol.DefaultRootID,
		CatalogID:  m.CatalogID,
		Tokens:     tokens,
		Components: NewComponentTable(),
		DataModel:  map[string]any{},
	}
	if m.SendDataModel != nil {
		s.SendDataModel = *m.SendDataModel
	}
	return s
}

// snapshot returns a copy that later mutations of s cannot reach.
func (s *Surface) snapshot() *Surface {
	cp := *s
	cp.Components = s.Components.copy()
	return &cp
}

// Component returns the component with the given id.
func (s *Surface) Component(id string) (protocol.Component, bool) {
	if s == nil || s.Components == nil {
		return protocol.Component{}, false
	}
	return s.Components.Get(id)
}

// ChildIDs returns the explicit children of c that exist in the surface,
// in list order. Dangling references are skipped.
func (s *Surface) ChildIDs(c protocol.Component) []string {
	ids := c.ChildIDs()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if s.Components.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// Root returns the root component.
func (s *Surface) Root() (protocol.Component, bool) {
	return s.Component(s.RootID)
}

// Renderable reports whether the surface has its root component.
func (s *Surface) Renderable() bool {
	_, ok := s.Root()
	return ok
}

// DanglingRefs lists child references that do not resolve.
func (s *Surface) DanglingRefs() []DanglingRef {
	return s.Components.DanglingRefs()
}

// Lookup returns the data-model value at path.
func (s *Surface) Lookup(path string) (any, bool) {
	return datamodel.Get(s.DataModel, path)
}
