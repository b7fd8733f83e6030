// Package transport carries A2UI batches between a design server and
// rendering devices.
//
// Frames are JSON objects with a "type" field, one per line:
//
//	{"type": "register", "platform": "android", "deviceId": "pixel-8"}
//	{"type": "registered", "deviceId": "pixel-8"}
//	{"type": "a2ui_messages", "messages": [...]}
//
// A bare JSON array of envelopes is accepted wherever an a2ui_messages
// frame is. Client is the device side: it dials, registers and feeds every
// received batch to a surface.Processor, reconnecting with quadratic
// backoff. Hub is the server side: a registry of connected devices with
// rate-limited push.
package transport
