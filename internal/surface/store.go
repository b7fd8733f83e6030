package surface

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/a2ui/internal/datamodel"
	"github.com/roach88/a2ui/internal/protocol"
	"github.com/roach88/a2ui/internal/validate"
)

// ChangeEvent is emitted after each message that changed store state.
type ChangeEvent struct {
	SurfaceID string
	Kind      protocol.Kind // the message kind that caused the change
	Seq       int64
}

// Store owns every surface in a process. Create one per feed or test; stores
// share nothing.
type Store struct {
	mu       sync.RWMutex
	surfaces map[string]*Surface
	closed   bool

	subMu   sync.Mutex
	subs    map[int]func(ChangeEvent)
	nextSub int

	logger       *slog.Logger
	clock        Sequencer
	decodeOpts   []protocol.DecodeOption
	validateOpts []validate.Option
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithClock sets the sequencer for change events.
func WithClock(c Sequencer) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithDecodeOptions sets options for decoding raw batches (for example
// protocol.WithLegacyDataModel).
func WithDecodeOptions(opts ...protocol.DecodeOption) Option {
	return func(s *Store) {
		s.decodeOpts = append(s.decodeOpts, opts...)
	}
}

// WithValidateOptions adds validator options (such as a catalog) to Import
// and ApplyLive. The mode is always chosen by the method.
func WithValidateOptions(opts ...validate.Option) Option {
	return func(s *Store) {
		s.validateOpts = append(s.validateOpts, opts...)
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		surfaces: make(map[string]*Surface),
		subs:     make(map[int]func(ChangeEvent)),
		logger:   slog.Default(),
		clock:    NewClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a snapshot of the surface with the given id.
func (s *Store) Get(id string) (*Surface, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	surf, ok := s.surfaces[id]
	if !ok {
		return nil, false
	}
	return surf.snapshot(), true
}

// Surfaces returns the ids of all live surfaces in sorted order.
func (s *Store) Surfaces() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.surfaces))
	for id := range s.surfaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasComponent reports whether a live surface holds componentID. It lets a
// Store serve as validate.Existing.
func (s *Store) HasComponent(surfaceID, componentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	surf, ok := s.surfaces[surfaceID]
	return ok && surf.Components.Has(componentID)
}

// CatalogID returns the catalog a live surface was created with.
func (s *Store) CatalogID(surfaceID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	surf, ok := s.surfaces[surfaceID]
	if !ok {
		return "", false
	}
	return surf.CatalogID, true
}

// Apply folds one message into the store. Messages for unknown surfaces
// and non-object root data models are ignored and reported as
// ErrSurfaceNotFound and ErrDataModelNotObject; neither is fatal to a
// batch.
func (s *Store) Apply(env protocol.Envelope) error {
	ev, err := s.apply(env)
	if err != nil {
		return err
	}
	if ev != nil {
		s.notify(*ev)
	}
	return nil
}

func (s *Store) apply(env protocol.Envelope) (*ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	switch m := env.Message.(type) {
	case *protocol.CreateSurface:
		if _, exists := s.surfaces[m.SurfaceID]; exists {
			s.logger.Debug("surface recreated", "surface", m.SurfaceID)
		}
		s.surfaces[m.SurfaceID] = newSurface(m)

	case *protocol.UpdateComponents:
		surf, ok := s.surfaces[m.SurfaceID]
		if !ok {
			s.logger.Warn("updateComponents for unknown surface", "surface", m.SurfaceID)
			return nil, fmt.Errorf("%w: %s", ErrSurfaceNotFound, m.SurfaceID)
		}
		for _, c := range m.Components {
			surf.Components.Upsert(c)
		}
		if !surf.Renderable() {
			s.logger.Warn("surface has no root component", "surface", m.SurfaceID, "root", surf.RootID)
		}

	case *protocol.UpdateDataModel:
		surf, ok := s.surfaces[m.SurfaceID]
		if !ok {
			s.logger.Warn("updateDataModel for unknown surface", "surface", m.SurfaceID)
			return nil, fmt.Errorf("%w: %s", ErrSurfaceNotFound, m.SurfaceID)
		}
		if m.IsRootReplace() {
			obj, isObj := m.Value.(map[string]any)
			if !isObj {
				s.logger.Warn("root data model is not an object", "surface", m.SurfaceID)
				return nil, fmt.Errorf("%w: surface %s", ErrDataModelNotObject, m.SurfaceID)
			}
			surf.DataModel = datamodel.Clone(obj)
		} else {
			surf.DataModel = datamodel.SetAtPath(surf.DataModel, m.Path, datamodel.CloneValue(m.Value))
		}

	case *protocol.DeleteSurface:
		if _, ok := s.surfaces[m.SurfaceID]; !ok {
			s.logger.Debug("deleteSurface for unknown surface", "surface", m.SurfaceID)
			return nil, nil
		}
		delete(s.surfaces, m.SurfaceID)

	default:
		return nil, fmt.Errorf("apply: %w", protocol.ErrNoMessageKind)
	}

	return &ChangeEvent{SurfaceID: env.SurfaceID(), Kind: env.Kind(), Seq: s.clock.Next()}, nil
}

// ApplyBatch applies every message in order. Failures never stop the
// batch; they are returned joined, each as a *MessageError.
func (s *Store) ApplyBatch(envs []protocol.Envelope) error {
	var errs []error
	for i, env := range envs {
		if err := s.Apply(env); err != nil {
			if errors.Is(err, ErrStoreClosed) {
				return err
			}
			errs = append(errs, &MessageError{Index: i, SurfaceID: env.SurfaceID(), Err: err})
		}
	}
	return errors.Join(errs...)
}

// Import validates a complete batch in export mode and applies it. Any
// structural error rejects the whole batch with an *ImportError and nothing
// is applied. Otherwise the batch is applied and the remaining
// (referential) findings are returned as a report.
func (s *Store) Import(raws []json.RawMessage) (validate.Errors, error) {
	opts := append([]validate.Option{}, s.validateOpts...)
	opts = append(opts, validate.WithMode(validate.ModeExport))
	report := validate.ValidateRaw(raws, opts...)
	if report.HasStructural() {
		return report, &ImportError{Errors: report}
	}

	envs, err := protocol.DecodeRaw(raws, s.decodeOpts...)
	if err != nil {
		return report, fmt.Errorf("import: %w", err)
	}
	for _, f := range report {
		s.logger.Info("import finding", "code", f.Code, "path", f.Path, "message", f.Message)
	}
	if err := s.ApplyBatch(envs); err != nil {
		s.logger.Warn("import applied with errors", "error", err)
	}
	return report, nil
}

// ImportJSON splits data and imports it.
func (s *Store) ImportJSON(data []byte) (validate.Errors, error) {
	raws, err := protocol.SplitBatch(data)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	return s.Import(raws)
}

// ApplyLive applies an incremental batch on a best-effort basis. Messages
// with structural errors are skipped and logged; the rest are applied in
// order. The returned findings cover the whole batch.
func (s *Store) ApplyLive(raws []json.RawMessage) validate.Errors {
	opts := append([]validate.Option{}, s.validateOpts...)
	opts = append(opts, validate.WithMode(validate.ModeIncremental), validate.WithExisting(s))
	report := validate.ValidateRaw(raws, opts...)

	if len(raws) == 0 {
		return report
	}
	for i, raw := range raws {
		if bad := report.ForMessage(i).Structural(); len(bad) > 0 {
			s.logger.Warn("skipping live message", "index", i, "error", bad[0].Error())
			continue
		}
		env, err := protocol.DecodeEnvelope(raw, s.decodeOpts...)
		if err != nil {
			s.logger.Warn("skipping live message", "index", i, "error", err)
			continue
		}
		if err := s.Apply(env); err != nil {
			if errors.Is(err, ErrStoreClosed) {
				return report
			}
			s.logger.Warn("live message not applied", "index", i, "surface", env.SurfaceID(), "error", err)
		}
	}
	return report
}

// Delete removes a surface directly, as a deleteSurface message would.
func (s *Store) Delete(id string) bool {
	s.mu.RLock()
	_, ok := s.surfaces[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return s.Apply(protocol.Wrap(&protocol.DeleteSurface{SurfaceID: id})) == nil
}

// Subscribe registers fn to receive every ChangeEvent. Events are delivered
// synchronously on the goroutine that applied the message, in seq order for
// a single writer. The returned func unregisters fn.
func (s *Store) Subscribe(fn func(ChangeEvent)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subs, id)
		})
	}
}

func (s *Store) notify(ev ChangeEvent) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(ChangeEvent), len(ids))
	for i, id := range ids {
		fns[i] = s.subs[id]
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Close drops every surface and subscriber. Mutations after Close return
// ErrStoreClosed.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.surfaces = make(map[string]*Surface)
	s.mu.Unlock()

	s.subMu.Lock()
	s.subs = make(map[int]func(ChangeEvent))
	s.subMu.Unlock()
}
