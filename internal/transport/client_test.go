package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/a2ui/internal/surface"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedDialer returns the next result on each dial and fails once the
// script runs out.
type scriptedDialer struct {
	mu    sync.Mutex
	steps []func() (Conn, error)
	dials int
}

func (d *scriptedDialer) dial(ctx context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.steps) == 0 {
		return nil, errNetwork
	}
	step := d.steps[0]
	d.steps = d.steps[1:]
	return step()
}

func failDial() (Conn, error) { return nil, errNetwork }

func connWith(frames []Frame, end error) func() (Conn, error) {
	return func() (Conn, error) {
		c := newFakeConn()
		for _, f := range frames {
			c.in <- f
		}
		if end == nil {
			close(c.in)
		} else {
			c.fail <- end
		}
		return c, nil
	}
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newTestClient(t *testing.T, d *scriptedDialer, opts ...ClientOption) (*Client, *surface.Processor, *surface.Store, *sleepRecorder) {
	t.Helper()
	store := surface.New(surface.WithLogger(quiet()))
	t.Cleanup(store.Close)
	proc := surface.NewProcessor(store, surface.WithProcessorLogger(quiet()))
	rec := &sleepRecorder{}
	opts = append([]ClientOption{WithClientLogger(quiet()), WithSleep(rec.sleep)}, opts...)
	return NewClient(d.dial, proc, opts...), proc, store, rec
}

func drain(t *testing.T, p *surface.Processor) {
	t.Helper()
	p.Stop()
	require.NoError(t, p.Run(context.Background()))
}

var createFrame = MessagesFrame([]json.RawMessage{
	json.RawMessage(`{"createSurface":{"surfaceId":"main"}}`),
	json.RawMessage(`{"updateComponents":{"surfaceId":"main","components":[{"id":"root","component":"Text","text":"hi"}]}}`),
})

func TestClientDeliversBatches(t *testing.T) {
	var registered []string
	d := &scriptedDialer{steps: []func() (Conn, error){
		connWith([]Frame{RegisteredFrame("device-7"), {Type: "ping"}, createFrame}, nil),
	}}
	c, proc, store, rec := newTestClient(t, d, OnRegistered(func(id string) { registered = append(registered, id) }))

	require.NoError(t, c.Run(context.Background()))
	drain(t, proc)

	assert.Equal(t, []string{"device-7"}, registered)
	assert.Empty(t, rec.delays)
	surf, ok := store.Get("main")
	require.True(t, ok)
	assert.True(t, surf.Renderable())
}

func TestClientSendsRegister(t *testing.T) {
	conn := newFakeConn()
	close(conn.in)
	d := &scriptedDialer{steps: []func() (Conn, error){func() (Conn, error) { return conn, nil }}}
	c, _, _, _ := newTestClient(t, d, WithDevice("android", "pixel-8"))

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []Frame{RegisterFrame("android", "pixel-8")}, conn.frames())
	assert.True(t, conn.isClosed())
}

func TestClientReconnectsWithBackoff(t *testing.T) {
	d := &scriptedDialer{steps: []func() (Conn, error){
		failDial,
		failDial,
		connWith([]Frame{createFrame}, nil),
	}}
	c, proc, store, rec := newTestClient(t, d)

	require.NoError(t, c.Run(context.Background()))
	drain(t, proc)

	assert.Equal(t, []time.Duration{time.Second, 4 * time.Second}, rec.delays)
	assert.Equal(t, 3, d.dials)
	_, ok := store.Get("main")
	assert.True(t, ok)
}

func TestClientResetsAttemptsAfterConnecting(t *testing.T) {
	d := &scriptedDialer{steps: []func() (Conn, error){
		connWith(nil, errNetwork),
		connWith(nil, errNetwork),
		failDial,
		connWith(nil, nil),
	}}
	c, _, _, rec := newTestClient(t, d)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []time.Duration{time.Second, time.Second, 4 * time.Second}, rec.delays)
}

func TestClientGivesUp(t *testing.T) {
	d := &scriptedDialer{}
	c, _, _, rec := newTestClient(t, d, WithBackoff(Backoff{MaxAttempts: 3, MaxDelay: 30 * time.Second, Unit: time.Second}))

	err := c.Run(context.Background())
	require.ErrorIs(t, err, ErrGaveUp)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, []time.Duration{time.Second, 4 * time.Second, 9 * time.Second}, rec.delays)
	assert.Equal(t, 4, d.dials)
}

func TestClientStopsWhenProcessorStops(t *testing.T) {
	d := &scriptedDialer{steps: []func() (Conn, error){
		connWith([]Frame{createFrame}, nil),
	}}
	c, proc, _, _ := newTestClient(t, d)
	proc.Stop()

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrProcessorStopped)
	assert.Equal(t, 1, d.dials)
}

func TestClientContextCancel(t *testing.T) {
	conn := newFakeConn()
	d := &scriptedDialer{steps: []func() (Conn, error){func() (Conn, error) { return conn, nil }}}
	c, _, _, _ := newTestClient(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(conn.frames()) == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, conn.isClosed())
}
