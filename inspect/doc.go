// Package inspect reads the debug surface a glyph-terminal module exports:
// glyph table lookups, terminal and canvas geometry, and the list of
// codepoints that fell back to a substitute glyph.
//
// Every accessor drives a module export through a bridge.Instance, reserving
// return-pointer scratch on the module's shadow stack for multi-value
// results. The facade owns no state of its own; it is as single-goroutine
// as the instance it wraps.
package inspect
