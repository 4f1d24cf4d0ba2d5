// Package wasmgen assembles minimal WebAssembly binaries in memory.
//
// The bridge's tests need real modules with controlled export surfaces: bump
// allocators, callback counters, debug facades. Shipping .wasm fixtures would
// hide what they do; building them from instructions keeps the behavior next
// to the assertions. Only the small slice of the binary format those modules
// use is supported.
package wasmgen
