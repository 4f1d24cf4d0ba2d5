package bridge

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmbridge "github.com/glyphterm/wasm-bridge"
	"github.com/glyphterm/wasm-bridge/closure"
	"github.com/glyphterm/wasm-bridge/codec"
	"github.com/glyphterm/wasm-bridge/errors"
	"github.com/glyphterm/wasm-bridge/handle"
	"github.com/glyphterm/wasm-bridge/memview"
)

// Instance is a live module plus its boundary state: memory views, string
// codec, handle table, error channel and callback bookkeeping. It is
// confined to the goroutine that instantiated it.
type Instance struct {
	runtime *Runtime
	mod     api.Module

	memory  *Memory
	views   *memview.Views
	enc     *codec.Encoder
	dec     *codec.Decoder
	table   *handle.Table
	channel *Channel
	alloc   *moduleAllocator

	funcCache map[string]api.Function
	startFn   api.Function

	// retired collects destructor triples queued by the closure GC
	// backstop from the collector's goroutine; they run at the next
	// module crossing. This is the instance's only shared state.
	retireMu sync.Mutex
	retired  []closure.Env

	started bool
	closed  bool
}

func newInstance(ctx context.Context, rt *Runtime, mod api.Module) (*Instance, error) {
	mem := mod.Memory()
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseBootstrap, "export", ExportMemory)
	}

	inst := &Instance{
		runtime:   rt,
		mod:       mod,
		memory:    NewMemory(mem),
		alloc:     newModuleAllocator(mod),
		funcCache: make(map[string]api.Function),
	}
	inst.alloc.setContext(ctx)
	inst.views = memview.New(inst.memory)

	var realloc wasmbridge.Reallocator
	if inst.alloc.hasRealloc() {
		realloc = inst.alloc
	}
	inst.enc = codec.NewEncoder(inst.views, inst.alloc, realloc)
	inst.dec = codec.NewDecoder(inst.views)

	var opts []handle.Option
	if mod.ExportedFunction(ExportTableAlloc) != nil {
		opts = append(opts, handle.WithSlotSource(&moduleSlots{inst: inst}))
	}
	inst.table = handle.New(opts...)
	inst.channel = NewChannel(inst.table)

	for _, name := range startNames {
		if fn := mod.ExportedFunction(name); fn != nil {
			inst.startFn = fn
			break
		}
	}
	return inst, nil
}

// Start runs the module's start routine. Instantiate calls it once; calling
// it again returns immediately, so re-entrant bootstrap is a no-op against
// the already-initialized surface.
func (i *Instance) Start(ctx context.Context) error {
	if i.closed {
		return errors.Closed(errors.PhaseBootstrap, "instance")
	}
	if i.started {
		return nil
	}
	// Instantiation established the first valid buffer generation; any
	// view constructed earlier is void.
	i.views.Reset()
	i.alloc.setContext(ctx)
	if i.startFn != nil {
		if err := i.startFn.CallWithStack(ctx, nil); err != nil {
			return errors.Wrap(errors.PhaseBootstrap, errors.KindTrap, err, "start routine")
		}
	}
	i.started = true
	return nil
}

// Started reports whether the start routine has completed.
func (i *Instance) Started() bool {
	return i.started
}

// Func resolves an exported function, caching the lookup.
func (i *Instance) Func(name string) (api.Function, error) {
	if fn, ok := i.funcCache[name]; ok {
		return fn, nil
	}
	fn := i.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseCall, "export", name)
	}
	i.funcCache[name] = fn
	return fn, nil
}

// Call invokes an exported function with flat numeric arguments. Destructors
// retired by the GC backstop run first, so collected closures finalize at a
// module crossing instead of on the collector's goroutine.
func (i *Instance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	if i.closed {
		return nil, errors.Closed(errors.PhaseCall, "instance")
	}
	i.alloc.setContext(ctx)
	i.drainRetired()

	fn, err := i.Func(name)
	if err != nil {
		return nil, err
	}
	results, err := fn.Call(ctx, args...)
	if err != nil {
		return nil, wrapCallError(name, err)
	}
	return results, nil
}

// EncodeString copies s into module memory and returns the pointer together
// with the exact encoded byte length. The pair must be consumed before
// anything else can allocate.
func (i *Instance) EncodeString(ctx context.Context, s string) (uint32, uint32, error) {
	if i.closed {
		return 0, 0, errors.Closed(errors.PhaseEncode, "instance")
	}
	i.alloc.setContext(ctx)
	ptr, err := i.enc.Encode(s)
	if err != nil {
		return 0, 0, err
	}
	return ptr, i.enc.LastLen(), nil
}

// DecodeString reads length bytes at ptr as strict UTF-8.
func (i *Instance) DecodeString(ptr, length uint32) (string, error) {
	if i.closed {
		return "", errors.Closed(errors.PhaseDecode, "instance")
	}
	return i.dec.Decode(ptr, length)
}

// ReadPtrLen reads a (pointer, length) pair the module wrote at addr, the
// usual return-pointer shape for string and buffer results.
func (i *Instance) ReadPtrLen(addr uint32) (uint32, uint32, error) {
	sc, err := i.views.Scalar()
	if err != nil {
		return 0, 0, err
	}
	ptr, err := sc.Uint32(addr)
	if err != nil {
		return 0, 0, err
	}
	length, err := sc.Uint32(addr + 4)
	if err != nil {
		return 0, 0, err
	}
	return ptr, length, nil
}

// StackAlloc reserves size bytes on the module's shadow stack and returns
// the frame pointer. Pair with StackFree once results are read.
func (i *Instance) StackAlloc(ctx context.Context, size uint32) (uint32, error) {
	fn, err := i.Func(ExportStack)
	if err != nil {
		return 0, err
	}
	var stack [1]uint64
	stack[0] = api.EncodeI32(-int32(size))
	if err := fn.CallWithStack(ctx, stack[:]); err != nil {
		return 0, errors.Wrap(errors.PhaseCall, errors.KindTrap, err, ExportStack)
	}
	return uint32(stack[0]), nil
}

// StackFree releases a frame taken with StackAlloc.
func (i *Instance) StackFree(ctx context.Context, size uint32) error {
	fn, err := i.Func(ExportStack)
	if err != nil {
		return err
	}
	var stack [1]uint64
	stack[0] = api.EncodeI32(int32(size))
	if err := fn.CallWithStack(ctx, stack[:]); err != nil {
		return errors.Wrap(errors.PhaseCall, errors.KindTrap, err, ExportStack)
	}
	return nil
}

// WrapClosure builds the host wrapper for a module callback environment.
// Exclusive wrappers reject reentry; shared ones tolerate nested calls.
func (i *Instance) WrapClosure(env closure.Env, shared bool) *closure.Func {
	hooks := closure.Hooks{
		Invoke:  i.invokeCallback,
		Destroy: i.destroyCallback,
		Retire:  i.retire,
	}
	if shared {
		return closure.Wrap(env, hooks)
	}
	return closure.WrapMut(env, hooks)
}

func (i *Instance) invokeCallback(fn, a, b uint32, arg uint64) (uint64, error) {
	f, err := i.Func(ExportCallbackInv)
	if err != nil {
		return 0, err
	}
	// A local frame: callback invocations nest.
	var stack [4]uint64
	stack[0] = uint64(fn)
	stack[1] = uint64(a)
	stack[2] = uint64(b)
	stack[3] = arg
	if err := f.CallWithStack(i.alloc.context(), stack[:]); err != nil {
		return 0, wrapCallError(ExportCallbackInv, err)
	}
	return stack[0], nil
}

func (i *Instance) destroyCallback(dtor, a, b uint32) error {
	f, err := i.Func(ExportCallbackDtr)
	if err != nil {
		return err
	}
	var stack [3]uint64
	stack[0] = uint64(dtor)
	stack[1] = uint64(a)
	stack[2] = uint64(b)
	if err := f.CallWithStack(i.alloc.context(), stack[:]); err != nil {
		return wrapCallError(ExportCallbackDtr, err)
	}
	return nil
}

// retire queues a destructor triple from the GC backstop. Runs on the
// collector's goroutine; must not touch the module.
func (i *Instance) retire(dtor, a, b uint32) {
	i.retireMu.Lock()
	i.retired = append(i.retired, closure.Env{Dtor: dtor, A: a, B: b})
	i.retireMu.Unlock()
}

// drainRetired runs queued destructors on the owning goroutine. Failures
// are logged and dropped; a best-effort backstop has no caller to report to.
func (i *Instance) drainRetired() {
	i.retireMu.Lock()
	pending := i.retired
	i.retired = nil
	i.retireMu.Unlock()

	for _, env := range pending {
		if err := i.destroyCallback(env.Dtor, env.A, env.B); err != nil {
			Logger().Warn("retired destructor failed",
				zap.Uint32("dtor", env.Dtor),
				zap.Uint32("a", env.A),
				zap.Error(err))
		}
	}
}

// Module exposes the underlying wazero module for direct export access.
func (i *Instance) Module() api.Module {
	return i.mod
}

// Memory exposes byte-level access to the module's linear memory.
func (i *Instance) Memory() *Memory {
	return i.memory
}

// Views exposes the invalidation-aware typed views.
func (i *Instance) Views() *memview.Views {
	return i.views
}

// Table exposes the handle table.
func (i *Instance) Table() *handle.Table {
	return i.table
}

// Channel exposes the pending-error rendezvous.
func (i *Instance) Channel() *Channel {
	return i.channel
}

// Allocator exposes the module's allocation entry points.
func (i *Instance) Allocator() wasmbridge.Allocator {
	return i.alloc
}

// Close tears down the instance. Queued retirements die with the module;
// the handle table is cleared so host values become collectible.
func (i *Instance) Close(ctx context.Context) error {
	if i.closed {
		return nil
	}
	i.closed = true
	i.runtime.forgetInstance(i.mod)

	i.retireMu.Lock()
	i.retired = nil
	i.retireMu.Unlock()

	i.channel.Reset()
	i.table.Reset()
	i.views.Reset()
	return i.mod.Close(ctx)
}

// moduleSlots delegates handle slot management to a module that exports its
// own table bookkeeping.
type moduleSlots struct {
	inst *Instance
}

func (s *moduleSlots) AllocSlot() (uint32, error) {
	fn, err := s.inst.Func(ExportTableAlloc)
	if err != nil {
		return 0, err
	}
	var stack [1]uint64
	if err := fn.CallWithStack(s.inst.alloc.context(), stack[:]); err != nil {
		return 0, wrapCallError(ExportTableAlloc, err)
	}
	return uint32(stack[0]), nil
}

func (s *moduleSlots) FreeSlot(idx uint32) error {
	fn, err := s.inst.Func(ExportTableDrop)
	if err != nil {
		return err
	}
	var stack [1]uint64
	stack[0] = uint64(idx)
	if err := fn.CallWithStack(s.inst.alloc.context(), stack[:]); err != nil {
		return wrapCallError(ExportTableDrop, err)
	}
	return nil
}

// wrapCallError keeps structured bridge errors intact and folds raw wazero
// failures into the trap taxonomy.
func wrapCallError(name string, err error) error {
	var be *errors.Error
	if stderrors.As(err, &be) {
		return err
	}
	return errors.Wrap(errors.PhaseCall, errors.KindTrap, err, name)
}
