// Package bridge connects a linear-memory WebAssembly module to its host.
//
// A Runtime owns the wazero engine and the registry of host operations.
// Modules compile once and instantiate into an Instance, which carries the
// full boundary surface: invalidation-aware memory views, the string codec,
// the handle table, the callback trampoline and the single-slot error
// channel. The instance also installs the "bridge" intrinsic namespace the
// module imports for strings, handles, closures and error consumption.
//
// Usage:
//
//	rt, err := bridge.New(ctx)
//	mod, err := rt.CompileBytes(ctx, wasmBytes)
//	inst, err := mod.Instantiate(ctx)
//	defer inst.Close(ctx)
//
//	ptr, n, err := inst.EncodeString(ctx, "café")
//	out, err := inst.Call(ctx, "render", uint64(ptr), uint64(n))
//
// An Instance is confined to the goroutine that created it. The module runs
// synchronously on that goroutine; host operations execute to completion
// before control returns. The only cross-goroutine traffic is the closure
// GC backstop, which queues destructors for the instance to run at its next
// module crossing.
package bridge
