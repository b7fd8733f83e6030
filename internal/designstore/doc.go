// Package designstore provides durable storage for named A2UI designs.
//
// A design is a complete export-mode batch stored under its surface id. The
// batch is validated before it is written, its strings are NFC-normalized,
// and it is stored in RFC 8785 canonical form together with its content
// hash, so saving the same design twice is a no-op and every distinct
// version appears exactly once in History.
//
// The store uses SQLite in WAL mode with a single connection.
package designstore
