package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/roach88/a2ui/internal/datamodel"
	"github.com/roach88/a2ui/internal/protocol"
)

// ErrDeviceNotFound is returned when pushing to an unknown device.
var ErrDeviceNotFound = errors.New("device not connected")

// Device describes a registered device.
type Device struct {
	ID          string    `json:"id"`
	Platform    string    `json:"platform"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// IDGenerator assigns ids to devices that register without one.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator produces time-ordered UUIDs.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7, falling back to a random UUID if the
// clock source fails.
func (UUIDv7Generator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

type device struct {
	Device
	conn    Conn
	limiter *rate.Limiter
}

// Hub tracks connected devices and pushes batches to them.
type Hub struct {
	mu      sync.RWMutex
	devices map[string]*device

	ids    IDGenerator
	clock  Clock
	limit  rate.Limit
	burst  int
	logger *slog.Logger

	onRegister func(Device)
}

// Clock supplies registration timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithIDGenerator sets the id source for anonymous devices.
func WithIDGenerator(g IDGenerator) HubOption {
	return func(h *Hub) {
		h.ids = g
	}
}

// WithHubClock sets the registration clock.
func WithHubClock(c Clock) HubOption {
	return func(h *Hub) {
		h.clock = c
	}
}

// WithPushRate limits pushes per device to limit per second with the
// given burst. The default is unlimited.
func WithPushRate(limit rate.Limit, burst int) HubOption {
	return func(h *Hub) {
		h.limit = limit
		h.burst = burst
	}
}

// WithHubLogger sets the hub logger.
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = l
	}
}

// OnRegister is called, outside the hub lock, after each registration.
func OnRegister(fn func(Device)) HubOption {
	return func(h *Hub) {
		h.onRegister = fn
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		devices: make(map[string]*device),
		ids:     UUIDv7Generator{},
		clock:   systemClock{},
		limit:   rate.Inf,
		burst:   1,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds a device. An empty id is replaced by a generated one and
// an empty platform by "unknown". Registering an id again replaces the
// earlier connection.
func (h *Hub) Register(platform, deviceID string, conn Conn) Device {
	if deviceID == "" {
		deviceID = h.ids.Generate()
	}
	if platform == "" {
		platform = "unknown"
	}
	d := &device{
		Device:  Device{ID: deviceID, Platform: platform, ConnectedAt: h.clock.Now()},
		conn:    conn,
		limiter: rate.NewLimiter(h.limit, h.burst),
	}

	h.mu.Lock()
	h.devices[deviceID] = d
	h.mu.Unlock()

	h.logger.Info("device registered", "device", deviceID, "platform", platform)
	return d.Device
}

// Unregister removes a device. It reports whether the device was present.
func (h *Hub) Unregister(deviceID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.devices[deviceID]; !ok {
		return false
	}
	delete(h.devices, deviceID)
	h.logger.Info("device disconnected", "device", deviceID)
	return true
}

// unregisterConn removes deviceID only while it still maps to conn, so a
// stale connection cannot drop its replacement.
func (h *Hub) unregisterConn(deviceID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.devices[deviceID]; ok && d.conn == conn {
		delete(h.devices, deviceID)
		h.logger.Info("device disconnected", "device", deviceID)
	}
}

// Devices lists connected devices ordered by id.
func (h *Hub) Devices() []Device {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Device, 0, len(h.devices))
	for _, d := range h.devices {
		out = append(out, d.Device)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (h *Hub) device(id string) (*device, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	d, ok := h.devices[id]
	return d, ok
}

// Push sends a batch to one device, waiting on its rate limiter. A device
// whose connection fails is unregistered.
func (h *Hub) Push(ctx context.Context, deviceID string, messages []json.RawMessage) error {
	d, ok := h.device(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return h.push(ctx, d, messages)
}

func (h *Hub) push(ctx context.Context, d *device, messages []json.RawMessage) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("push to %s: %w", d.ID, err)
	}
	if err := d.conn.WriteFrame(MessagesFrame(messages)); err != nil {
		h.unregisterConn(d.ID, d.conn)
		return fmt.Errorf("push to %s: %w", d.ID, err)
	}
	h.logger.Debug("batch pushed", "device", d.ID, "messages", len(messages))
	return nil
}

// PushAll sends a batch to every connected device and returns how many
// received it. Failures are joined into the error.
func (h *Hub) PushAll(ctx context.Context, messages []json.RawMessage) (int, error) {
	h.mu.RLock()
	targets := make([]*device, 0, len(h.devices))
	for _, d := range h.devices {
		targets = append(targets, d)
	}
	h.mu.RUnlock()
	sort.Slice(targets, func(i, j int) bool { return targets[i].ID < targets[j].ID })

	var (
		sent int
		errs []error
	)
	for _, d := range targets {
		if err := h.push(ctx, d, messages); err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// PushDesign personalizes a design with overlay and sends it to every
// device. See RewriteDataModel.
func (h *Hub) PushDesign(ctx context.Context, messages []json.RawMessage, overlay map[string]any) (int, error) {
	rewritten, err := RewriteDataModel(messages, overlay)
	if err != nil {
		return 0, err
	}
	return h.PushAll(ctx, rewritten)
}

// RewriteDataModel turns every updateDataModel message into a root replace
// whose value is the message's data merged with overlay. The message's data
// is its value placed at its path, or an empty object when the value is
// absent or not an object at the root. A nil overlay returns messages
// unchanged.
func RewriteDataModel(messages []json.RawMessage, overlay map[string]any) ([]json.RawMessage, error) {
	if overlay == nil {
		return messages, nil
	}
	normalized := datamodel.NormalizeOverlay(overlay)

	out := make([]json.RawMessage, len(messages))
	for i, raw := range messages {
		env, err := protocol.DecodeEnvelope(raw)
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		udm, ok := env.Message.(*protocol.UpdateDataModel)
		if !ok {
			out[i] = raw
			continue
		}

		base := map[string]any{}
		switch {
		case udm.IsRootReplace():
			if obj, isObj := udm.Value.(map[string]any); isObj {
				base = obj
			}
		case udm.HasValue:
			base = datamodel.SetAtPath(base, udm.Path, udm.Value)
		}

		merged := datamodel.Merge(base, normalized)
		data, err := json.Marshal(protocol.Wrap(&protocol.UpdateDataModel{
			SurfaceID: udm.SurfaceID,
			Path:      "/",
			Value:     merged,
			HasValue:  true,
		}))
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		out[i] = data
	}
	return out, nil
}

// Serve handles one device connection until it closes or ctx ends. The
// device is registered on its register frame and unregistered when Serve
// returns.
func (h *Hub) Serve(ctx context.Context, conn Conn) error {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	var registered string
	defer func() {
		if registered != "" {
			h.unregisterConn(registered, conn)
		}
	}()

	for {
		f, err := conn.ReadFrame()
		if errors.Is(err, ErrMalformedFrame) {
			h.logger.Debug("ignoring malformed frame", "error", err)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if f.Type != FrameRegister {
			h.logger.Debug("ignoring frame", "type", f.Type)
			continue
		}
		if registered != "" && registered != f.DeviceID {
			h.unregisterConn(registered, conn)
		}
		dev := h.Register(f.Platform, f.DeviceID, conn)
		registered = dev.ID
		if err := conn.WriteFrame(RegisteredFrame(dev.ID)); err != nil {
			return fmt.Errorf("acknowledge %s: %w", dev.ID, err)
		}
		if h.onRegister != nil {
			h.onRegister(dev)
		}
	}
}

// ListenAndServe accepts connections on ln until ctx ends, serving each in
// its own goroutine.
func (h *Hub) ListenAndServe(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("accept: %w", err)
		}
		h.logger.Info("new connection", "remote", c.RemoteAddr().String())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.Serve(ctx, NetConn(c)); err != nil && !errors.Is(err, context.Canceled) {
				h.logger.Warn("connection error", "remote", c.RemoteAddr().String(), "error", err)
			}
		}()
	}
}
