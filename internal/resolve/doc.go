// Package resolve turns symbolic component values into renderer-ready ones.
//
// Three resolvers are provided:
//
//   - Token references ("{Accents.Red}") in style maps resolve against the
//     surface's design tokens.
//   - Data bindings ("${/hello/text}") in text and label fields resolve
//     against the surface's data model.
//   - Time templates ("{{current_time}}") in resolved text expand using the
//     render-time clock.
//
// Every function here is total: unresolvable input falls back to the
// original string and no error is ever returned. Resolution is lazy and
// nothing is cached, so callers resolve on every render.
package resolve
