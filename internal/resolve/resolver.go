package resolve

import (
	"log/slog"
	"time"

	"github.com/roach88/a2ui/internal/protocol"
)

// Clock supplies the render time for template expansion.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}

// Resolver binds the pure resolvers to a render clock and location. A
// Resolver holds no surface state and is safe for concurrent use.
type Resolver struct {
	clock    Clock
	location *time.Location
	logger   *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock sets the render clock.
func WithClock(c Clock) Option {
	return func(r *Resolver) {
		r.clock = c
	}
}

// WithLocation sets the timezone templates are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) {
		r.location = loc
	}
}

// WithLogger sets the logger used for fallback diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// New creates a Resolver using the system clock in the local timezone.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		clock:    SystemClock,
		location: time.Local,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the render time in the resolver's location.
func (r *Resolver) Now() time.Time {
	return r.clock.Now().In(r.location)
}

// ResolveText resolves a text or label field. A nil field resolves to "".
func (r *Resolver) ResolveText(text *string, dataModel map[string]any) string {
	if text == nil {
		return ""
	}
	return r.ResolveBinding(*text, dataModel)
}

// ResolveBinding resolves a data binding at the current render time.
func (r *Resolver) ResolveBinding(value string, dataModel map[string]any) string {
	resolved, ok := lookupBinding(value, dataModel)
	if !ok {
		r.logger.Debug("binding unresolved", "binding", value)
	}
	return ExpandTemplates(resolved, r.Now())
}

// ResolveStyleValue resolves one style key against tokens.
func (r *Resolver) ResolveStyleValue(style map[string]any, key string, tokens map[string]protocol.DesignToken) (any, bool) {
	v, ok := ResolveStyleValue(style, key, tokens)
	if ok {
		if raw, isStr := style[key].(string); isStr {
			if name, isRef := TokenName(raw); isRef {
				if _, found := tokens[name]; !found {
					r.logger.Debug("token unresolved", "token", name, "key", key)
				}
			}
		}
	}
	return v, ok
}
