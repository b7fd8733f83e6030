package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Frame types.
const (
	FrameRegister   = "register"
	FrameRegistered = "registered"
	FrameMessages   = "a2ui_messages"
)

// ErrMalformedFrame is returned for input that is JSON but not a frame.
// Connections skip such frames and keep reading.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one transport-level message.
type Frame struct {
	Type     string            `json:"type"`
	Platform string            `json:"platform,omitempty"`
	DeviceID string            `json:"deviceId,omitempty"`
	Messages []json.RawMessage `json:"messages,omitempty"`
}

// RegisterFrame announces a device.
func RegisterFrame(platform, deviceID string) Frame {
	return Frame{Type: FrameRegister, Platform: platform, DeviceID: deviceID}
}

// RegisteredFrame acknowledges a registration with the assigned id.
func RegisteredFrame(deviceID string) Frame {
	return Frame{Type: FrameRegistered, DeviceID: deviceID}
}

// MessagesFrame carries a batch of envelopes.
func MessagesFrame(messages []json.RawMessage) Frame {
	return Frame{Type: FrameMessages, Messages: messages}
}

// EncodeFrame marshals f. An a2ui_messages frame always carries a messages
// array, even when empty.
func EncodeFrame(f Frame) ([]byte, error) {
	if f.Type == "" {
		return nil, fmt.Errorf("encode frame: %w: missing type", ErrMalformedFrame)
	}
	if f.Type == FrameMessages {
		msgs := f.Messages
		if msgs == nil {
			msgs = []json.RawMessage{}
		}
		return json.Marshal(struct {
			Type     string            `json:"type"`
			Messages []json.RawMessage `json:"messages"`
		}{f.Type, msgs})
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}

// DecodeFrame parses one frame. A bare JSON array decodes as an
// a2ui_messages frame. Unknown frame types are returned as is; callers
// ignore what they do not handle.
func DecodeFrame(data []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Frame{}, fmt.Errorf("%w: empty", ErrMalformedFrame)
	}

	if trimmed[0] == '[' {
		var msgs []json.RawMessage
		if err := json.Unmarshal(trimmed, &msgs); err != nil {
			return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if msgs == nil {
			msgs = []json.RawMessage{}
		}
		return MessagesFrame(msgs), nil
	}

	var f Frame
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	if f.Type == FrameMessages && f.Messages == nil {
		f.Messages = []json.RawMessage{}
	}
	return f, nil
}
