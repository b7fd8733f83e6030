// Package validate checks A2UI message batches before they reach a surface
// store.
//
// The validator works on generic decoded JSON rather than typed envelopes,
// so it can report a components field that is not an array, or an envelope
// with two message kinds, instead of failing to decode. It never returns an
// error of its own; every finding is a ValidationError carrying a path such
// as messages[2].updateComponents.components[0].
package validate

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/a2ui/internal/catalog"
	"github.com/roach88/a2ui/internal/protocol"
)

// Mode selects which rules run.
type Mode int

const (
	// ModeExport validates a batch that describes complete surfaces. Every
	// updateComponents must be self-contained and the batch must create a
	// surface and populate it.
	ModeExport Mode = iota

	// ModeIncremental validates live updates to surfaces that may already
	// exist. Child references may point at components the store already
	// holds, a missing root is only a warning, and the whole-batch rule is
	// skipped.
	ModeIncremental
)

func (m Mode) String() string {
	switch m {
	case ModeExport:
		return "export"
	case ModeIncremental:
		return "incremental"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "export" or "incremental".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "export", "":
		return ModeExport, nil
	case "incremental", "live":
		return ModeIncremental, nil
	default:
		return ModeExport, fmt.Errorf("unknown validation mode %q (want export or incremental)", s)
	}
}

// Existing reports which components a store already holds. Only consulted
// in ModeIncremental.
type Existing interface {
	HasComponent(surfaceID, componentID string) bool
	CatalogID(surfaceID string) (string, bool)
}

type options struct {
	mode     Mode
	existing Existing
	catalog  *catalog.Catalog
	registry *catalog.Registry
}

// Option configures Validate.
type Option func(*options)

// WithMode selects the rule set. The default is ModeExport.
func WithMode(m Mode) Option {
	return func(o *options) {
		o.mode = m
	}
}

// WithExisting supplies the store state incremental validation resolves
// references against.
func WithExisting(e Existing) Option {
	return func(o *options) {
		o.existing = e
	}
}

// WithCatalog checks every component of surfaces that do not name a
// catalog against c.
func WithCatalog(c *catalog.Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithRegistry resolves createSurface.catalogId through r. Unknown ids
// produce a warning and disable catalog checks for that surface.
func WithRegistry(r *catalog.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// surfaceState tracks what the batch has established for one surface.
type surfaceState struct {
	ids     map[string]bool
	created bool // createSurface or deleteSurface seen; existing store state no longer applies
	catalog *catalog.Catalog
}

type validator struct {
	opts     options
	errs     Errors
	surfaces map[string]*surfaceState
}

// ValidateJSON splits a JSON array or JSON-lines batch and validates it.
func ValidateJSON(data []byte, opts ...Option) Errors {
	raws, err := protocol.SplitBatch(data)
	if err != nil {
		return Errors{{Path: "messages", Message: err.Error(), Code: ErrUnparseable, Kind: KindStructural}}
	}
	return ValidateRaw(raws, opts...)
}

// ValidateRaw validates already-split envelopes. Envelopes that are not
// valid JSON are reported individually.
func ValidateRaw(raws []json.RawMessage, opts ...Option) Errors {
	messages := make([]any, len(raws))
	var parseErrs Errors
	for i, raw := range raws {
		if err := json.Unmarshal(raw, &messages[i]); err != nil {
			parseErrs = append(parseErrs, ValidationError{
				Path:    msgPath(i),
				Message: err.Error(),
				Code:    ErrUnparseable,
				Kind:    KindStructural,
			})
			messages[i] = unparseable{}
		}
	}
	errs := Validate(messages, opts...)
	if len(parseErrs) == 0 {
		return errs
	}
	return append(parseErrs, errs...)
}

// unparseable marks an envelope already reported by ValidateRaw.
type unparseable struct{}

// Validate checks a batch of decoded envelopes and returns every finding.
// The result is empty for a valid batch.
func Validate(messages []any, opts ...Option) Errors {
	v := &validator{surfaces: make(map[string]*surfaceState)}
	for _, opt := range opts {
		opt(&v.opts)
	}

	if len(messages) == 0 {
		return Errors{{Path: "messages", Message: "batch must contain at least one message", Code: ErrEmptyBatch, Kind: KindStructural}}
	}

	var creates, updates int
	for i, m := range messages {
		switch v.envelope(i, m) {
		case protocol.KindCreateSurface:
			creates++
		case protocol.KindUpdateComponents:
			updates++
		}
	}

	if v.opts.mode == ModeExport {
		if creates == 0 {
			v.add("messages", ErrMissingCreateSurface, KindReferential, "batch must contain at least one createSurface message")
		}
		if updates == 0 {
			v.add("messages", ErrMissingUpdateComponents, KindReferential, "batch must contain at least one updateComponents message")
		}
	}
	return v.errs
}

func (v *validator) add(path, code string, kind Kind, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...), Code: code, Kind: kind})
}

func (v *validator) warn(path, code string, kind Kind, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...), Code: code, Kind: kind, Warning: true})
}

func msgPath(i int) string {
	return fmt.Sprintf("messages[%d]", i)
}

// envelope validates one envelope and returns its kind, or KindUnknown when
// the envelope was rejected by the kind rules.
func (v *validator) envelope(i int, m any) protocol.Kind {
	path := msgPath(i)
	if _, ok := m.(unparseable); ok {
		return protocol.KindUnknown
	}
	obj, ok := m.(map[string]any)
	if !ok {
		v.add(path, ErrEnvelopeNotObject, KindStructural, "envelope must be an object, got %s", typeName(m))
		return protocol.KindUnknown
	}

	var keys []string
	for _, k := range protocol.MessageKeys {
		if val, ok := obj[k]; ok && val != nil {
			keys = append(keys, k)
		}
	}
	switch len(keys) {
	case 0:
		v.add(path, ErrNoMessageKind, KindStructural, "envelope must contain one of %s", strings.Join(protocol.MessageKeys, ", "))
		return protocol.KindUnknown
	case 1:
	default:
		v.add(path, ErrAmbiguousEnvelope, KindStructural, "envelope contains more than one message kind: %s", strings.Join(keys, ", "))
		return protocol.KindUnknown
	}

	key := keys[0]
	kind := protocol.KindForKey(key)
	path += "." + key
	payload, ok := obj[key].(map[string]any)
	if !ok {
		v.add(path, ErrPayloadNotObject, KindStructural, "%s must be an object, got %s", key, typeName(obj[key]))
		return protocol.KindUnknown
	}

	surfaceID, ok := v.surfaceID(path, payload)
	switch kind {
	case protocol.KindCreateSurface:
		v.createSurfaceFields(path, payload)
		if ok {
			v.createSurface(path, surfaceID, payload)
		}
	case protocol.KindUpdateComponents:
		v.updateComponents(path, surfaceID, ok, payload)
	case protocol.KindUpdateDataModel:
		if p, present := payload["path"]; present && p != nil {
			if _, isStr := p.(string); !isStr {
				v.add(path+".path", ErrPathNotString, KindStructural, "path must be a string, got %s", typeName(p))
			}
		}
	case protocol.KindDeleteSurface:
		if ok {
			v.surfaces[surfaceID] = &surfaceState{ids: map[string]bool{}, created: true}
		}
	}
	return kind
}

func (v *validator) surfaceID(path string, payload map[string]any) (string, bool) {
	raw, present := payload["surfaceId"]
	id, isStr := raw.(string)
	if !present || !isStr || id == "" {
		if present && !isStr && raw != nil {
			v.add(path+".surfaceId", ErrMissingSurfaceID, KindStructural, "surfaceId must be a string, got %s", typeName(raw))
		} else {
			v.add(path+".surfaceId", ErrMissingSurfaceID, KindStructural, "surfaceId is required")
		}
		return "", false
	}
	return id, true
}

func (v *validator) createSurface(path, surfaceID string, payload map[string]any) {
	st := &surfaceState{ids: map[string]bool{}, created: true, catalog: v.opts.catalog}
	if id, ok := payload["catalogId"].(string); ok && id != "" {
		if c, configured := v.catalogFor(id); configured {
			st.catalog = c
			if c == nil {
				v.warn(path+".catalogId", ErrUnknownCatalog, KindReferential, "unknown catalog %q; catalog checks disabled for this surface", id)
			}
		}
	}
	v.surfaces[surfaceID] = st
}

// createSurfaceFields type-checks the optional createSurface fields.
func (v *validator) createSurfaceFields(path string, payload map[string]any) {
	if raw, present := payload["catalogId"]; present && raw != nil {
		if _, ok := raw.(string); !ok {
			v.add(path+".catalogId", ErrCatalogIDNotString, KindStructural, "catalogId must be a string, got %s", typeName(raw))
		}
	}
	if raw, present := payload["sendDataModel"]; present && raw != nil {
		if _, ok := raw.(bool); !ok {
			v.add(path+".sendDataModel", ErrSendDataModelType, KindStructural, "sendDataModel must be a boolean, got %s", typeName(raw))
		}
	}
	raw, present := payload["designTokens"]
	if !present || raw == nil {
		return
	}
	tokens, ok := raw.(map[string]any)
	if !ok {
		v.add(path+".designTokens", ErrTokensNotObject, KindStructural, "designTokens must be an object, got %s", typeName(raw))
		return
	}
	for _, name := range slices.Sorted(maps.Keys(tokens)) {
		tokenPath := fmt.Sprintf("%s.designTokens[%q]", path, name)
		entry := tokens[name]
		if entry == nil {
			continue
		}
		tok, ok := entry.(map[string]any)
		if !ok {
			v.add(tokenPath, ErrInvalidToken, KindStructural, "design token must be an object, got %s", typeName(entry))
			continue
		}
		for _, key := range []string{"value", "collection"} {
			if f, present := tok[key]; present && f != nil {
				if _, ok := f.(string); !ok {
					v.add(tokenPath+"."+key, ErrInvalidToken, KindStructural, "token %s must be a string, got %s", key, typeName(f))
				}
			}
		}
	}
}

// catalogFor resolves a catalog id. configured is false when no catalog
// checking was requested at all.
func (v *validator) catalogFor(id string) (c *catalog.Catalog, configured bool) {
	if v.opts.registry != nil {
		c, _ = v.opts.registry.Lookup(id)
		return c, true
	}
	if v.opts.catalog != nil {
		if v.opts.catalog.ID() == id {
			return v.opts.catalog, true
		}
		return nil, true
	}
	return nil, false
}

func (v *validator) state(surfaceID string) *surfaceState {
	st, ok := v.surfaces[surfaceID]
	if ok {
		return st
	}
	st = &surfaceState{ids: map[string]bool{}, catalog: v.opts.catalog}
	if v.opts.existing != nil {
		if id, found := v.opts.existing.CatalogID(surfaceID); found && id != "" {
			if c, configured := v.catalogFor(id); configured {
				st.catalog = c
			}
		}
	}
	v.surfaces[surfaceID] = st
	return st
}

// component is the validated shape of one entry in a components array.
type component struct {
	index    int
	id       string
	typ      string
	children []childRef
	doc      map[string]any
}

type childRef struct {
	index int
	id    string
}

func (v *validator) updateComponents(path, surfaceID string, haveSurface bool, payload map[string]any) {
	compsPath := path + ".components"
	raw, present := payload["components"]
	list, ok := raw.([]any)
	if !ok {
		if !present || raw == nil {
			v.add(compsPath, ErrComponentsNotArray, KindStructural, "components is required and must be an array")
		} else {
			v.add(compsPath, ErrComponentsNotArray, KindStructural, "components must be an array, got %s", typeName(raw))
		}
		return
	}

	var comps []component
	ids := make(map[string]bool, len(list))
	for j, item := range list {
		c, ok := v.component(fmt.Sprintf("%s[%d]", compsPath, j), j, item)
		if !ok {
			continue
		}
		comps = append(comps, c)
		if c.id != "" {
			ids[c.id] = true
		}
	}

	var st *surfaceState
	if haveSurface {
		st = v.state(surfaceID)
	}

	roots := 0
	for _, c := range comps {
		if c.id == protocol.DefaultRootID {
			roots++
		}
	}
	hasRoot := roots > 0
	if !hasRoot && v.opts.mode == ModeIncremental && st != nil {
		hasRoot = v.known(st, surfaceID, protocol.DefaultRootID)
	}
	switch {
	case roots > 1:
		v.add(compsPath, ErrDuplicateRoot, KindReferential, "components must contain exactly one %q component, found %d", protocol.DefaultRootID, roots)
	case !hasRoot && v.opts.mode == ModeExport:
		v.add(compsPath, ErrMissingRoot, KindReferential, "components must contain a %q component", protocol.DefaultRootID)
	case !hasRoot:
		v.warn(compsPath, ErrMissingRoot, KindReferential, "surface has no %q component yet", protocol.DefaultRootID)
	}

	for _, c := range comps {
		for _, ch := range c.children {
			if ids[ch.id] {
				continue
			}
			if v.opts.mode == ModeIncremental && st != nil && v.known(st, surfaceID, ch.id) {
				continue
			}
			v.add(fmt.Sprintf("%s[%d].children.explicitList[%d]", compsPath, c.index, ch.index),
				ErrDanglingChild, KindReferential, "child %q of %q not found", ch.id, c.id)
		}
	}

	if st == nil {
		return
	}
	for id := range ids {
		st.ids[id] = true
	}
	if st.catalog != nil {
		for _, c := range comps {
			v.checkCatalog(fmt.Sprintf("%s[%d]", compsPath, c.index), st.catalog, c)
		}
	}
}

// known reports whether id was established earlier in the batch or, for a
// surface the batch has not recreated, exists in the store.
func (v *validator) known(st *surfaceState, surfaceID, id string) bool {
	if st.ids[id] {
		return true
	}
	return !st.created && v.opts.existing != nil && v.opts.existing.HasComponent(surfaceID, id)
}

func (v *validator) component(path string, index int, item any) (component, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		v.add(path, ErrComponentNotObject, KindStructural, "component must be an object, got %s", typeName(item))
		return component{}, false
	}
	c := component{index: index, doc: obj}

	if id, isStr := obj["id"].(string); isStr && id != "" {
		c.id = id
	} else if raw := obj["id"]; raw != nil && !isStr {
		v.add(path+".id", ErrMissingComponentID, KindStructural, "component id must be a string, got %s", typeName(raw))
	} else {
		v.add(path+".id", ErrMissingComponentID, KindStructural, "component id is required")
	}

	c.typ = v.componentType(path, obj)

	for _, key := range []string{"text", "label"} {
		if raw, present := obj[key]; present && raw != nil {
			if _, ok := raw.(string); !ok {
				v.add(path+"."+key, ErrTextNotString, KindStructural, "%s must be a string, got %s", key, typeName(raw))
			}
		}
	}
	for _, key := range []string{"style", "labelStyle"} {
		if raw, present := obj[key]; present && raw != nil {
			if _, ok := raw.(map[string]any); !ok {
				v.add(path+"."+key, ErrStyleNotObject, KindStructural, "%s must be an object, got %s", key, typeName(raw))
			}
		}
	}

	if raw, present := obj["children"]; present && raw != nil {
		c.children = v.children(path+".children", raw)
	}

	if raw, present := obj["action"]; present && raw != nil {
		if !hasEventName(raw) {
			v.add(path+".action.event.name", ErrActionEventName, KindStructural, "action requires a non-empty event name")
		} else if ctx, present := eventContext(raw); present {
			if _, ok := ctx.(map[string]any); !ok {
				v.add(path+".action.event.context", ErrActionEventName, KindStructural, "event context must be an object, got %s", typeName(ctx))
			}
		}
	}
	return c, true
}

// componentType reads the type from "component", falling back to the
// "componentType" alias only when the primary key is absent or empty.
func (v *validator) componentType(path string, obj map[string]any) string {
	for _, key := range []string{"component", "componentType"} {
		switch typ := obj[key].(type) {
		case nil:
		case string:
			if typ != "" {
				return typ
			}
		default:
			v.add(path+"."+key, ErrMissingComponentType, KindStructural, "component type must be a string, got %s", typeName(typ))
			return ""
		}
	}
	v.add(path+".component", ErrMissingComponentType, KindStructural, "component type is required")
	return ""
}

func (v *validator) children(path string, raw any) []childRef {
	obj, ok := raw.(map[string]any)
	if !ok {
		v.add(path, ErrChildrenNotObject, KindStructural, "children must be an object, got %s", typeName(raw))
		return nil
	}
	if tmpl, present := obj["template"]; present && tmpl != nil {
		v.template(path+".template", tmpl)
	}
	rawList, present := obj["explicitList"]
	if !present || rawList == nil {
		return nil
	}
	list, ok := rawList.([]any)
	if !ok {
		v.add(path+".explicitList", ErrExplicitListNotArray, KindStructural, "explicitList must be an array, got %s", typeName(rawList))
		return nil
	}
	refs := make([]childRef, 0, len(list))
	for k, e := range list {
		id, ok := e.(string)
		if !ok || id == "" {
			v.add(fmt.Sprintf("%s.explicitList[%d]", path, k), ErrChildIDNotString, KindStructural, "child id must be a non-empty string")
			continue
		}
		refs = append(refs, childRef{index: k, id: id})
	}
	return refs
}

func (v *validator) template(path string, raw any) {
	tmpl, ok := raw.(map[string]any)
	if !ok {
		v.add(path, ErrInvalidTemplate, KindStructural, "template must be an object, got %s", typeName(raw))
		return
	}
	for _, key := range []string{"dataPath", "componentId"} {
		if f, present := tmpl[key]; present && f != nil {
			if _, ok := f.(string); !ok {
				v.add(path+"."+key, ErrInvalidTemplate, KindStructural, "template %s must be a string, got %s", key, typeName(f))
			}
		}
	}
}

// eventContext returns action.event.context when it is present and not null.
func eventContext(raw any) (any, bool) {
	action, _ := raw.(map[string]any)
	event, _ := action["event"].(map[string]any)
	ctx, present := event["context"]
	return ctx, present && ctx != nil
}

func hasEventName(raw any) bool {
	action, ok := raw.(map[string]any)
	if !ok {
		return false
	}
	event, ok := action["event"].(map[string]any)
	if !ok {
		return false
	}
	name, ok := event["name"].(string)
	return ok && name != ""
}

func (v *validator) checkCatalog(path string, cat *catalog.Catalog, c component) {
	if c.typ == "" {
		return
	}
	for _, viol := range cat.CheckValue(c.typ, c.doc) {
		code := ErrCatalogSchema
		if viol.Unknown {
			code = ErrUnknownComponentType
		}
		v.add(path+pointerPath(viol.Field), code, KindStructural, "%s", viol.Message)
	}
}

// pointerPath turns a JSON pointer ("/children/explicitList/0") into the
// dotted suffix used in error paths (".children.explicitList[0]").
func pointerPath(ptr string) string {
	if ptr == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		if isIndex(seg) {
			b.WriteString("[" + seg + "]")
			continue
		}
		b.WriteString("." + seg)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
