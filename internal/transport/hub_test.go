package transport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/roach88/a2ui/internal/testutil"
)

var hubTime = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestHub(opts ...HubOption) *Hub {
	opts = append([]HubOption{
		WithHubLogger(quiet()),
		WithIDGenerator(testutil.NewSequentialIDs("")),
		WithHubClock(testutil.NewFixedClock(hubTime)),
	}, opts...)
	return NewHub(opts...)
}

func TestHubRegister(t *testing.T) {
	h := newTestHub()
	a := h.Register("android", "", newFakeConn())
	b := h.Register("", "zz-named", newFakeConn())
	c := h.Register("ios", "", newFakeConn())

	assert.Equal(t, "device-1", a.ID)
	assert.Equal(t, "unknown", b.Platform)
	assert.Equal(t, "device-2", c.ID)
	assert.Equal(t, hubTime, a.ConnectedAt)

	devices := h.Devices()
	require.Len(t, devices, 3)
	assert.Equal(t, []string{"device-1", "device-2", "zz-named"}, []string{devices[0].ID, devices[1].ID, devices[2].ID})

	assert.True(t, h.Unregister("device-1"))
	assert.False(t, h.Unregister("device-1"))
	assert.Len(t, h.Devices(), 2)
}

func TestUUIDv7Generator(t *testing.T) {
	id, err := uuid.Parse(UUIDv7Generator{}.Generate())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestHubPush(t *testing.T) {
	h := newTestHub()
	conn := newFakeConn()
	dev := h.Register("android", "pixel", conn)
	msgs := []json.RawMessage{json.RawMessage(`{"deleteSurface":{"surfaceId":"a"}}`)}

	require.NoError(t, h.Push(context.Background(), dev.ID, msgs))
	assert.Equal(t, []Frame{MessagesFrame(msgs)}, conn.frames())

	err := h.Push(context.Background(), "ghost", msgs)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestHubPushFailureUnregisters(t *testing.T) {
	h := newTestHub()
	conn := newFakeConn()
	conn.writeErr = errNetwork
	h.Register("android", "pixel", conn)

	err := h.Push(context.Background(), "pixel", nil)
	assert.ErrorIs(t, err, errNetwork)
	assert.Empty(t, h.Devices())
}

func TestHubPushAll(t *testing.T) {
	h := newTestHub()
	good1, good2, bad := newFakeConn(), newFakeConn(), newFakeConn()
	bad.writeErr = errNetwork
	h.Register("android", "a", good1)
	h.Register("android", "b", bad)
	h.Register("ios", "c", good2)

	n, err := h.PushAll(context.Background(), []json.RawMessage{json.RawMessage(`{"deleteSurface":{"surfaceId":"x"}}`)})
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, errNetwork)
	assert.Len(t, good1.frames(), 1)
	assert.Len(t, good2.frames(), 1)
	assert.Len(t, h.Devices(), 2)
}

func TestHubPushRateLimited(t *testing.T) {
	h := newTestHub(WithPushRate(rate.Limit(1), 1))
	h.Register("android", "pixel", newFakeConn())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, h.Push(ctx, "pixel", nil))
	err := h.Push(ctx, "pixel", nil)
	assert.Error(t, err, "second push within the same second exceeds the deadline")
}

func TestRewriteDataModel(t *testing.T) {
	messages := []json.RawMessage{
		json.RawMessage(`{"createSurface":{"surfaceId":"main"}}`),
		json.RawMessage(`{"updateDataModel":{"surfaceId":"main","path":"/","value":{"user":{"name":"Ada","plan":"free"},"items":[1,2]}}}`),
		json.RawMessage(`{"updateDataModel":{"surfaceId":"main","path":"/weather/temp","value":72}}`),
		json.RawMessage(`{"updateDataModel":{"surfaceId":"main","value":"not an object"}}`),
	}
	overlay := map[string]any{
		"user":        map[string]any{"name": "Grace"},
		"/items":      []any{3.0},
		"/flags/beta": true,
	}

	out, err := RewriteDataModel(messages, overlay)
	require.NoError(t, err)
	require.Len(t, out, 4)

	assert.Equal(t, string(messages[0]), string(out[0]))
	assert.JSONEq(t, `{"updateDataModel":{"surfaceId":"main","path":"/","value":{
		"user":{"name":"Grace","plan":"free"},"items":[3],"flags":{"beta":true}}}}`, string(out[1]))
	assert.JSONEq(t, `{"updateDataModel":{"surfaceId":"main","path":"/","value":{
		"weather":{"temp":72},"user":{"name":"Grace"},"items":[3],"flags":{"beta":true}}}}`, string(out[2]))
	assert.JSONEq(t, `{"updateDataModel":{"surfaceId":"main","path":"/","value":{
		"user":{"name":"Grace"},"items":[3],"flags":{"beta":true}}}}`, string(out[3]))
}

func TestRewriteDataModelNilOverlay(t *testing.T) {
	messages := []json.RawMessage{json.RawMessage(`{"updateDataModel":{"surfaceId":"main","path":"/a","value":1}}`)}
	out, err := RewriteDataModel(messages, nil)
	require.NoError(t, err)
	assert.Equal(t, messages, out)
}

func TestHubPushDesign(t *testing.T) {
	h := newTestHub()
	conn := newFakeConn()
	h.Register("android", "pixel", conn)

	n, err := h.PushDesign(context.Background(), []json.RawMessage{
		json.RawMessage(`{"updateDataModel":{"surfaceId":"main","value":{"a":1}}}`),
	}, map[string]any{"/b": 2.0})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	frames := conn.frames()
	require.Len(t, frames, 1)
	assert.JSONEq(t, `{"updateDataModel":{"surfaceId":"main","path":"/","value":{"a":1,"b":2}}}`, string(frames[0].Messages[0]))
}

func TestHubServe(t *testing.T) {
	var seen []Device
	h := newTestHub(OnRegister(func(d Device) { seen = append(seen, d) }))
	conn := newFakeConn()
	conn.in <- Frame{Type: "ping"}
	conn.in <- RegisterFrame("android", "")
	close(conn.in)

	require.NoError(t, h.Serve(context.Background(), conn))

	require.Len(t, seen, 1)
	assert.Equal(t, "device-1", seen[0].ID)
	assert.Equal(t, []Frame{RegisteredFrame("device-1")}, conn.frames())
	assert.Empty(t, h.Devices(), "device is removed when the connection ends")
	assert.True(t, conn.isClosed())
}

func TestHubServeKeepsReplacement(t *testing.T) {
	h := newTestHub()
	old, replacement := newFakeConn(), newFakeConn()
	old.in <- RegisterFrame("android", "pixel")

	done := make(chan error, 1)
	go func() { done <- h.Serve(context.Background(), old) }()
	require.Eventually(t, func() bool { return len(old.frames()) == 1 }, time.Second, time.Millisecond)

	h.Register("android", "pixel", replacement)
	close(old.in)
	require.NoError(t, <-done)

	devices := h.Devices()
	require.Len(t, devices, 1)
	require.NoError(t, h.Push(context.Background(), "pixel", nil))
	assert.Len(t, replacement.frames(), 1)
}
