// Package surface holds the stateful side of the engine: the Surface Store
// that folds protocol messages into per-surface state, and the Processor
// that feeds it batches in arrival order.
//
// # State machine
//
// A surface does not exist until a createSurface message arrives. It then
// exists empty until components arrive, and is removed by deleteSurface.
// A createSurface for an existing id replaces it with a fresh surface.
// Messages addressed to a surface that does not exist are ignored with a
// warning.
//
// # Snapshots
//
// Store.Get returns an immutable snapshot. Later messages never change a
// snapshot already handed out, and a snapshot of a deleted surface simply
// goes stale. Snapshots are cheap: the data model is copy-on-write and
// component definitions are never mutated after they are stored.
//
// # Concurrency
//
// A Store serializes all mutation internally and may be read from any
// goroutine. Message order still matters: later messages override earlier
// ones by id and path, so a live feed must apply batches in the order they
// arrived. Processor provides a single-writer FIFO for that.
package surface
