// Package protocol defines the A2UI wire model: the four message kinds, the
// envelope that carries exactly one of them, and the component record with
// its open set of extension properties.
//
// # Envelope
//
// On the wire an envelope is a JSON object with exactly one populated key:
//
//	{"createSurface":    {"surfaceId": "...", "designTokens": {...}}}
//	{"updateComponents": {"surfaceId": "...", "components": [...]}}
//	{"updateDataModel":  {"surfaceId": "...", "path": "/a/b", "value": ...}}
//	{"deleteSurface":    {"surfaceId": "..."}}
//
// Decoding inspects which key is present and produces an Envelope whose
// Message is one of *CreateSurface, *UpdateComponents, *UpdateDataModel or
// *DeleteSurface. Envelopes with zero or several populated keys fail to
// decode; the validate package reports them with a path instead.
//
// # Components
//
// Component keeps the fields every renderer understands as struct fields and
// every other key in Extensions as raw JSON, so icon names, urls and svg
// payloads survive a decode/encode cycle byte for byte.
//
// # Batches
//
// A batch is a JSON array of envelopes or a JSON-lines stream with one
// envelope per line. SplitBatch accepts both.
package protocol
