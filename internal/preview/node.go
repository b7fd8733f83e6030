package preview

import (
	"log/slog"

	"github.com/roach88/a2ui/internal/datamodel"
	"github.com/roach88/a2ui/internal/protocol"
	"github.com/roach88/a2ui/internal/resolve"
	"github.com/roach88/a2ui/internal/surface"
)

// DefaultMaxDepth bounds the walk from the root.
const DefaultMaxDepth = 64

// Node is one resolved component.
type Node struct {
	ID         string         `json:"id"`
	Type       string         `json:"component"`
	Text       *string        `json:"text,omitempty"`
	Label      *string        `json:"label,omitempty"`
	Style      map[string]any `json:"style,omitempty"`
	LabelStyle map[string]any `json:"labelStyle,omitempty"`
	Event      string         `json:"event,omitempty"`
	Children   []*Node        `json:"children,omitempty"`

	// Missing lists explicit children that are not in the surface.
	Missing []string `json:"missing,omitempty"`
	// Cycle is set when the component already appears on the path from the
	// root. Its children are not walked again.
	Cycle bool `json:"cycle,omitempty"`
	// Truncated is set when the walk stopped at the depth limit.
	Truncated bool `json:"truncated,omitempty"`
}

// Options configures Build.
type Options struct {
	MaxDepth int
	Logger   *slog.Logger
}

// Option configures Build.
type Option func(*Options)

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(o *Options) {
		o.MaxDepth = n
	}
}

// WithLogger sets the logger used for cycle and depth warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// Build resolves the surface's component tree from its root. It returns
// nil when the surface has no root component.
func Build(s *surface.Surface, r *resolve.Resolver, opts ...Option) *Node {
	o := Options{MaxDepth: DefaultMaxDepth, Logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if r == nil {
		r = resolve.New()
	}

	root, ok := s.Root()
	if !ok {
		return nil
	}
	b := &builder{surface: s, resolver: r, opts: o, onPath: map[string]bool{}}
	return b.node(root, 0)
}

type builder struct {
	surface  *surface.Surface
	resolver *resolve.Resolver
	opts     Options
	onPath   map[string]bool
}

func (b *builder) node(c protocol.Component, depth int) *Node {
	n := &Node{ID: c.ID, Type: c.ComponentType}
	if c.Text != nil {
		s := b.resolver.ResolveText(c.Text, b.surface.DataModel)
		n.Text = &s
	}
	if c.Label != nil {
		s := b.resolver.ResolveText(c.Label, b.surface.DataModel)
		n.Label = &s
	}
	n.Style = b.style(c.Style)
	n.LabelStyle = b.style(c.LabelStyle)
	if c.Action != nil {
		n.Event = c.Action.Event.Name
	}

	if b.onPath[c.ID] {
		b.opts.Logger.Warn("component cycle", "surface", b.surface.ID, "component", c.ID)
		n.Cycle = true
		return n
	}
	if depth >= b.opts.MaxDepth {
		b.opts.Logger.Warn("component tree too deep", "surface", b.surface.ID, "component", c.ID, "depth", depth)
		n.Truncated = len(c.ChildIDs()) > 0
		return n
	}

	b.onPath[c.ID] = true
	defer delete(b.onPath, c.ID)

	for _, id := range c.ChildIDs() {
		child, ok := b.surface.Component(id)
		if !ok {
			n.Missing = append(n.Missing, id)
			continue
		}
		n.Children = append(n.Children, b.node(child, depth+1))
	}
	return n
}

func (b *builder) style(style map[string]any) map[string]any {
	if len(style) == 0 {
		return nil
	}
	out := make(map[string]any, len(style))
	for k := range style {
		v, _ := b.resolver.ResolveStyleValue(style, k, b.surface.Tokens)
		out[k] = v
	}
	return out
}

// Walk calls fn for n and every descendant, depth first.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Find returns the first node with the given id.
func (n *Node) Find(id string) *Node {
	var found *Node
	n.Walk(func(x *Node) {
		if found == nil && x.ID == id {
			found = x
		}
	})
	return found
}

// Personalize returns a copy of s whose data model is the surface's own
// merged with overlay. Overlay keys may be nested objects or "/"-prefixed
// flat paths.
func Personalize(s *surface.Surface, overlay map[string]any) *surface.Surface {
	cp := *s
	cp.DataModel = datamodel.Merge(s.DataModel, datamodel.NormalizeOverlay(overlay))
	return &cp
}
