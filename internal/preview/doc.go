// Package preview builds resolved component trees from surfaces.
//
// A tree is what a renderer would draw: every text and label binding
// resolved against the data model, every style token resolved against the
// surface's design tokens, and children walked from the root in list order.
// WriteTree prints it as an indented outline for terminals and golden files.
package preview
