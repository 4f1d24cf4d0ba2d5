// Package wasmbridge provides a bidirectional bridge between a linear-memory
// WebAssembly module and a Go host.
//
// The bridge covers everything a module needs to talk to a managed host:
// invalidation-aware views over linear memory, string marshaling in both
// directions, an opaque-handle table for host objects referenced from the
// module, reference-counted callback trampolines, a single-slot error channel,
// and bootstrap of the module against the import surface built from all of the
// above. Execution is backed by wazero, so the whole stack is pure Go.
//
// # Architecture Overview
//
//	wasmbridge/          Root package with core Memory and Allocator interfaces
//	├── bridge/          Bootstrap, instance surface, host-op registry, error channel
//	├── memview/         Cached byte/float/scalar views with growth invalidation
//	├── codec/           Host string <-> module memory encoding and decoding
//	├── handle/          Integer-handle table with reserved singleton slots
//	├── closure/         Callback trampolines and closure lifetime management
//	├── inspect/         Read-only debug facade over a module's debug exports
//	├── hostops/         Reference host-operation providers (console, storage, clock)
//	└── errors/          Structured error types for boundary failures
//
// # Quick Start
//
// Load a module and call into it:
//
//	rt, err := bridge.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	if err := rt.RegisterHost(hostops.NewConsole(logger)); err != nil {
//	    log.Fatal(err)
//	}
//
//	mod, err := rt.CompileBytes(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	results, err := inst.Call(ctx, "tick")
//
// # Calling Convention
//
// All boundary values are plain numbers. Strings and buffers cross as
// (pointer, byte length) pairs into linear memory; host objects cross as
// integer handles into the handle table. The module exports its allocator
// (malloc, optionally realloc and free) and the bridge exposes a small
// intrinsic import namespace next to whatever host operations the embedder
// registers.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. Instance and everything
// reachable from it (views, codec, handle table, closures) are confined to a
// single goroutine: the execution model is single-threaded and cooperative,
// and host operations run to completion on the goroutine that entered the
// module.
//
// # Memory Model
//
// Linear memory only grows. Growth replaces the backing buffer, so views are
// re-acquired lazily instead of being cached across calls; any module call
// that can allocate invalidates previously fetched views and subranges.
package wasmbridge
