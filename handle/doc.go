// Package handle implements the table of opaque host objects referenced from
// a module by integer handles.
//
// Handles replace real references at the boundary: the module only ever holds
// the integer, the table owns the object. Low indices are reserved for the
// singleton values undefined, null, true and false so the most common values
// never allocate a slot. Slot allocation prefers a module-owned source (the
// module tracks its own free list through exports) and falls back to a
// host-side free list for modules without one.
//
// The table is confined to the goroutine driving its module; the execution
// model is single-threaded and cooperative, so calls never interleave.
package handle
