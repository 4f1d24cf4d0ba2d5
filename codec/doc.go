// Package codec marshals strings and byte buffers between a Go host and a
// module's linear memory.
//
// Encoding allocates inside the module through its exported allocator and
// returns a pointer paired with a "last length" register: the pointer and
// Encoder.LastLen must be read together before the next encode overwrites the
// register. ASCII text takes a fast path that writes bytes directly into an
// exact-size allocation; the first non-ASCII character switches to a
// worst-case reallocation followed by a shrink to the exact encoded length.
// Without a reallocator the encoder performs a single exact-size pass.
//
// Decoding is strict UTF-8: malformed bytes are a hard failure, never
// substituted. The decoder recycles its internal state (intern cache and
// cumulative byte counter) after a fixed decoded-volume ceiling; recycling is
// invisible to callers and never changes decoded content.
package codec
