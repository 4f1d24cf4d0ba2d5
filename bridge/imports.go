package bridge

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/glyphterm/wasm-bridge/closure"
	"github.com/glyphterm/wasm-bridge/errors"
	"github.com/glyphterm/wasm-bridge/handle"
)

// isIntrinsic reports whether name is one of the bridge-provided imports.
func isIntrinsic(name string) bool {
	switch name {
	case IntrinsicStringNew, IntrinsicDropRef, IntrinsicClosureWrap,
		IntrinsicCbDrop, IntrinsicTakeError, IntrinsicThrow:
		return true
	}
	return false
}

// installHostModules instantiates a host module for every namespace the
// compiled module imports: the intrinsic namespace from the bridge itself,
// the rest from the registry. Host modules are shared across instances, so
// namespaces that already exist in the runtime are left alone.
func (r *Runtime) installHostModules(ctx context.Context, compiled wazero.CompiledModule) error {
	seen := make(map[string]bool)
	for _, imp := range compiled.ImportedFunctions() {
		namespace, _, ok := imp.Import()
		if !ok || seen[namespace] {
			continue
		}
		seen[namespace] = true
		if r.runtime.Module(namespace) != nil {
			continue
		}
		var err error
		if namespace == IntrinsicNamespace {
			err = r.installIntrinsics(ctx)
		} else {
			err = r.installNamespace(ctx, namespace)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) installNamespace(ctx context.Context, namespace string) error {
	fns := r.registry.functions(namespace)
	if len(fns) == 0 {
		// CheckImports already reported the gap; nothing to build here.
		return nil
	}
	builder := r.runtime.NewHostModuleBuilder(namespace)
	for _, fn := range fns {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(r.wrapHostFn(namespace, fn), fn.Params, fn.Results).
			Export(fn.Name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return errors.Registration(errors.PhaseBootstrap, namespace, "", err)
	}
	return nil
}

func (r *Runtime) installIntrinsics(ctx context.Context) error {
	i32 := api.ValueTypeI32
	builder := r.runtime.NewHostModuleBuilder(IntrinsicNamespace)
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(r.intrinsicStringNew), []api.ValueType{i32, i32}, []api.ValueType{i32}).
		Export(IntrinsicStringNew)
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(r.intrinsicDropRef), []api.ValueType{i32}, nil).
		Export(IntrinsicDropRef)
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(r.intrinsicClosureWrap), []api.ValueType{i32, i32, i32, i32, i32}, []api.ValueType{i32}).
		Export(IntrinsicClosureWrap)
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(r.intrinsicCbDrop), []api.ValueType{i32}, []api.ValueType{i32}).
		Export(IntrinsicCbDrop)
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(r.intrinsicTakeError), nil, []api.ValueType{i32}).
		Export(IntrinsicTakeError)
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(r.intrinsicThrow), []api.ValueType{i32, i32}, nil).
		Export(IntrinsicThrow)
	if _, err := builder.Instantiate(ctx); err != nil {
		return errors.Registration(errors.PhaseBootstrap, IntrinsicNamespace, "", err)
	}
	return nil
}

// callerInstance resolves the instance behind a host call. Host functions
// only run inside a module call, which only happens on tracked instances.
func (r *Runtime) callerInstance(mod api.Module) *Instance {
	inst := r.instanceFor(mod)
	if inst == nil {
		panic(errors.NotInitialized(errors.PhaseBoundary, "instance"))
	}
	return inst
}

// string_new(ptr, len) -> handle. Decode failure captures the error and
// hands back the undefined handle as the neutral result.
func (r *Runtime) intrinsicStringNew(ctx context.Context, mod api.Module, stack []uint64) {
	inst := r.callerInstance(mod)
	s, err := inst.dec.Decode(uint32(stack[0]), uint32(stack[1]))
	if err != nil {
		inst.channel.Capture(err)
		stack[0] = uint64(handle.Undefined)
		return
	}
	ref, err := inst.table.Store(s)
	if err != nil {
		inst.channel.Capture(err)
		stack[0] = uint64(handle.Undefined)
		return
	}
	stack[0] = uint64(ref)
}

// drop_ref(idx). Reserved handles are permanent, so this is free to be
// unconditional.
func (r *Runtime) intrinsicDropRef(ctx context.Context, mod api.Module, stack []uint64) {
	inst := r.callerInstance(mod)
	inst.table.Free(handle.Ref(stack[0]))
}

// closure_wrap(fn, a, b, dtor, shared) -> handle. shared != 0 builds the
// reentrant flavor; 0 builds the exclusive one.
func (r *Runtime) intrinsicClosureWrap(ctx context.Context, mod api.Module, stack []uint64) {
	inst := r.callerInstance(mod)
	env := closure.Env{
		Fn:   uint32(stack[0]),
		A:    uint32(stack[1]),
		B:    uint32(stack[2]),
		Dtor: uint32(stack[3]),
	}
	f := inst.WrapClosure(env, stack[4] != 0)
	ref, err := inst.table.Store(f)
	if err != nil {
		inst.channel.Capture(err)
		stack[0] = uint64(handle.Undefined)
		return
	}
	stack[0] = uint64(ref)
}

// cb_drop(idx) -> u32. Takes the wrapper out of the table and releases the
// module's reference. Returns 1 when that release hit zero, meaning the
// module must reclaim the environment itself; the destructor is not driven
// from here.
func (r *Runtime) intrinsicCbDrop(ctx context.Context, mod api.Module, stack []uint64) {
	inst := r.callerInstance(mod)
	v, ok := inst.table.Take(handle.Ref(stack[0]))
	if !ok {
		stack[0] = 0
		return
	}
	f, ok := v.(*closure.Func)
	if !ok {
		stack[0] = 0
		return
	}
	if f.Unref() {
		stack[0] = 1
		return
	}
	stack[0] = 0
}

// take_error() -> handle. Consumes the pending error; 0 when none.
func (r *Runtime) intrinsicTakeError(ctx context.Context, mod api.Module, stack []uint64) {
	inst := r.callerInstance(mod)
	stack[0] = uint64(inst.channel.Take())
}

// throw(ptr, len) aborts the current entry point. The panic unwinds into
// wazero, which surfaces it as the call's error.
func (r *Runtime) intrinsicThrow(ctx context.Context, mod api.Module, stack []uint64) {
	inst := r.callerInstance(mod)
	msg, err := inst.dec.Decode(uint32(stack[0]), uint32(stack[1]))
	if err != nil {
		msg = "unreadable abort message"
	}
	panic(errors.Trap(msg))
}

// wrapHostFn adapts a registered host function to the boundary contract:
// a returned error or a panic is captured into the error channel and the
// declared results are zeroed, so the module always receives a value.
func (r *Runtime) wrapHostFn(namespace string, fn HostFunc) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		inst := r.callerInstance(mod)
		defer func() {
			if rec := recover(); rec != nil {
				neutralize(stack, len(fn.Results))
				inst.channel.Capture(recoveredError(namespace, fn.Name, rec))
			}
		}()
		call := &Call{Instance: inst, Stack: stack}
		if err := fn.Fn(ctx, call); err != nil {
			neutralize(stack, len(fn.Results))
			inst.channel.Capture(err)
		}
	}
}

func neutralize(stack []uint64, results int) {
	for i := 0; i < results && i < len(stack); i++ {
		stack[i] = 0
	}
}

func recoveredError(namespace, name string, rec any) error {
	if err, ok := rec.(error); ok {
		return errors.Wrap(errors.PhaseHost, errors.KindTrap, err, namespace+"."+name)
	}
	return errors.New(errors.PhaseHost, errors.KindTrap).
		Value(rec).
		Detail("host operation %s.%s panicked", namespace, name).
		Build()
}
