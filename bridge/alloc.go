package bridge

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmbridge "github.com/glyphterm/wasm-bridge"
	"github.com/glyphterm/wasm-bridge/errors"
)

// moduleAllocator drives the module's exported allocation entry points.
// The calling convention is (size, align) -> ptr for malloc,
// (ptr, old, new, align) -> ptr for realloc and (ptr, size, align) for free.
type moduleAllocator struct {
	allocFn   api.Function
	reallocFn api.Function
	freeFn    api.Function

	// ctx is refreshed at each module crossing; allocation happens inside
	// encode paths that carry no context of their own.
	ctx   context.Context
	stack []uint64
}

func newModuleAllocator(mod api.Module) *moduleAllocator {
	a := &moduleAllocator{stack: make([]uint64, 4)}
	for _, name := range allocNames {
		if fn := mod.ExportedFunction(name); fn != nil {
			a.allocFn = fn
			break
		}
	}
	for _, name := range reallocNames {
		if fn := mod.ExportedFunction(name); fn != nil {
			a.reallocFn = fn
			break
		}
	}
	for _, name := range freeNames {
		if fn := mod.ExportedFunction(name); fn != nil {
			a.freeFn = fn
			break
		}
	}
	return a
}

func (a *moduleAllocator) setContext(ctx context.Context) {
	a.ctx = ctx
}

func (a *moduleAllocator) context() context.Context {
	if a.ctx != nil {
		return a.ctx
	}
	return context.Background()
}

// hasRealloc reports whether the module exports a reallocation entry point.
// Without one, string encoding uses the single exact-size allocation path.
func (a *moduleAllocator) hasRealloc() bool {
	return a.reallocFn != nil
}

func (a *moduleAllocator) Alloc(size, align uint32) (uint32, error) {
	if a.allocFn == nil {
		return 0, errors.NotInitialized(errors.PhaseAlloc, "module allocator")
	}
	a.stack[0] = uint64(size)
	a.stack[1] = uint64(align)
	if err := a.allocFn.CallWithStack(a.context(), a.stack[:2]); err != nil {
		return 0, errors.Wrap(errors.PhaseAlloc, errors.KindAllocation, err, "malloc")
	}
	ptr := uint32(a.stack[0])
	if ptr == 0 && size > 0 {
		return 0, errors.AllocationFailed(errors.PhaseAlloc, size, align)
	}
	return ptr, nil
}

func (a *moduleAllocator) Realloc(ptr, oldSize, newSize, align uint32) (uint32, error) {
	if a.reallocFn == nil {
		return 0, errors.NotInitialized(errors.PhaseAlloc, "module reallocator")
	}
	a.stack[0] = uint64(ptr)
	a.stack[1] = uint64(oldSize)
	a.stack[2] = uint64(newSize)
	a.stack[3] = uint64(align)
	if err := a.reallocFn.CallWithStack(a.context(), a.stack[:4]); err != nil {
		return 0, errors.Wrap(errors.PhaseAlloc, errors.KindAllocation, err, "realloc")
	}
	out := uint32(a.stack[0])
	if out == 0 && newSize > 0 {
		return 0, errors.AllocationFailed(errors.PhaseAlloc, newSize, align)
	}
	return out, nil
}

// Free returns an allocation to the module. Failures are logged, not
// surfaced; there is no recovery path for a free that traps.
func (a *moduleAllocator) Free(ptr, size, align uint32) {
	if a.freeFn == nil || ptr == 0 {
		return
	}
	a.stack[0] = uint64(ptr)
	a.stack[1] = uint64(size)
	a.stack[2] = uint64(align)
	if err := a.freeFn.CallWithStack(a.context(), a.stack[:3]); err != nil {
		Logger().Warn("free failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}

// Compile-time check that moduleAllocator implements the bridge interfaces
var (
	_ wasmbridge.Allocator   = (*moduleAllocator)(nil)
	_ wasmbridge.Reallocator = (*moduleAllocator)(nil)
)
