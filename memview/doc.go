// Package memview provides cached, invalidation-aware views over a module's
// linear memory.
//
// Linear memory growth replaces the backing buffer, so a view fetched before a
// growth event must never be reused after it. Views detects staleness by
// comparing the cached buffer length against the live memory size and rebuilds
// lazily on the next access. Callers re-fetch views after any module call that
// can allocate; subranges returned by Bytes, Floats and Uint32s are zero-copy
// and share the same lifetime rule.
//
// All state is per bridge instance. Two independently bootstrapped modules
// never share a Views.
package memview
