package transport

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantType string
		wantMsgs int
		wantID   string
	}{
		{"register", `{"type":"register","platform":"android","deviceId":"pixel"}`, FrameRegister, 0, "pixel"},
		{"registered", `{"type":"registered","deviceId":"device-1"}`, FrameRegistered, 0, "device-1"},
		{"messages", `{"type":"a2ui_messages","messages":[{"deleteSurface":{"surfaceId":"a"}}]}`, FrameMessages, 1, ""},
		{"messages without list", `{"type":"a2ui_messages"}`, FrameMessages, 0, ""},
		{"bare array", `[{"createSurface":{"surfaceId":"a"}},{"deleteSurface":{"surfaceId":"a"}}]`, FrameMessages, 2, ""},
		{"empty array", `  []  `, FrameMessages, 0, ""},
		{"unknown type", `{"type":"ping"}`, "ping", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeFrame([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, f.Type)
			assert.Len(t, f.Messages, tt.wantMsgs)
			assert.Equal(t, tt.wantID, f.DeviceID)
			if tt.wantType == FrameMessages {
				assert.NotNil(t, f.Messages)
			}
		})
	}
}

func TestDecodeFrameMalformed(t *testing.T) {
	for _, in := range []string{``, `not json`, `{"platform":"android"}`, `[1,`, `{"type": 3}`} {
		_, err := DecodeFrame([]byte(in))
		assert.ErrorIs(t, err, ErrMalformedFrame, in)
	}
}

func TestEncodeFrame(t *testing.T) {
	data, err := EncodeFrame(MessagesFrame(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"a2ui_messages","messages":[]}`, string(data))

	data, err = EncodeFrame(RegisterFrame("ios", "iphone"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"register","platform":"ios","deviceId":"iphone"}`, string(data))

	_, err = EncodeFrame(Frame{})
	assert.ErrorIs(t, err, ErrMalformedFrame)

	msgs := []json.RawMessage{json.RawMessage(`{"deleteSurface":{"surfaceId":"x"}}`)}
	data, err = EncodeFrame(MessagesFrame(msgs))
	require.NoError(t, err)
	back, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.JSONEq(t, string(msgs[0]), string(back.Messages[0]))
}

func TestBackoffDelay(t *testing.T) {
	b := DefaultBackoff()
	want := []time.Duration{0, 1, 4, 9, 16, 25, 30, 30, 30, 30, 30}
	for attempt, w := range want {
		assert.Equal(t, w*time.Second, b.Delay(attempt), "attempt %d", attempt)
	}
	assert.Equal(t, 30*time.Second, b.Delay(1<<40))
}

func TestBackoffExhausted(t *testing.T) {
	b := DefaultBackoff()
	assert.False(t, b.Exhausted(10))
	assert.True(t, b.Exhausted(11))
	assert.False(t, Backoff{}.Exhausted(1000))
}
