package bridge

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/glyphterm/wasm-bridge/internal/wasmgen"
)

func i32Params(n int) []api.ValueType {
	out := make([]api.ValueType, n)
	for i := range out {
		out[i] = api.ValueTypeI32
	}
	return out
}

// captionModule is the full guest-side ABI in miniature: a bump allocator
// with realloc, a shadow stack, a start routine that counts its runs, a
// caption export returning (ptr, len) of a UTF-8 string through a return
// pointer, and a grow export so tests can force buffer replacement.
//
// Layout: shadow stack tops out at 1008, static data sits at 1024, the
// bump heap starts at 2048.
func captionModule() []byte {
	m := &wasmgen.Module{
		Types: []wasmgen.FuncType{
			{Params: []wasmgen.ValType{wasmgen.I32, wasmgen.I32}, Results: []wasmgen.ValType{wasmgen.I32}},
			{Params: []wasmgen.ValType{wasmgen.I32, wasmgen.I32, wasmgen.I32, wasmgen.I32}, Results: []wasmgen.ValType{wasmgen.I32}},
			{Params: []wasmgen.ValType{wasmgen.I32, wasmgen.I32, wasmgen.I32}},
			{Params: []wasmgen.ValType{wasmgen.I32}, Results: []wasmgen.ValType{wasmgen.I32}},
			{},
			{Results: []wasmgen.ValType{wasmgen.I32}},
			{Params: []wasmgen.ValType{wasmgen.I32}},
		},
		Mem: &wasmgen.Mem{Min: 1},
		Globals: []wasmgen.Global{
			{Type: wasmgen.I32, Mut: true, Init: wasmgen.I32Init(2048)}, // heap
			{Type: wasmgen.I32, Mut: true, Init: wasmgen.I32Init(1008)}, // sp
			{Type: wasmgen.I32, Mut: true, Init: wasmgen.I32Init(0)},    // start runs
		},
		Data: []wasmgen.Data{
			{Offset: 1024, Bytes: []byte("caf\xc3\xa9")},
		},
	}

	// malloc(size, align): aligned bump.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type:   0,
		Locals: []wasmgen.ValType{wasmgen.I32},
		Body: wasmgen.NewBody().
			GlobalGet(0).LocalGet(1).I32Add().I32Const(1).I32Sub().
			I32Const(0).LocalGet(1).I32Sub().I32And().
			LocalTee(2).
			LocalGet(0).I32Add().GlobalSet(0).
			LocalGet(2).
			End(),
	})

	// realloc(ptr, old, new, align): fresh bump plus copy of min(old, new).
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type:   1,
		Locals: []wasmgen.ValType{wasmgen.I32},
		Body: wasmgen.NewBody().
			GlobalGet(0).LocalGet(3).I32Add().I32Const(1).I32Sub().
			I32Const(0).LocalGet(3).I32Sub().I32And().
			LocalTee(4).
			LocalGet(2).I32Add().GlobalSet(0).
			LocalGet(4).
			LocalGet(0).
			LocalGet(1).LocalGet(2).LocalGet(1).LocalGet(2).I32LtU().Select().
			MemoryCopy().
			LocalGet(4).
			End(),
	})

	// free(ptr, size, align): the bump heap never reclaims.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type: 2,
		Body: wasmgen.NewBody().End(),
	})

	// add_to_stack_pointer(delta) -> new sp.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type:   3,
		Locals: []wasmgen.ValType{wasmgen.I32},
		Body: wasmgen.NewBody().
			GlobalGet(1).LocalGet(0).I32Add().
			LocalTee(1).GlobalSet(1).
			LocalGet(1).
			End(),
	})

	// start: counts invocations so tests can observe exactly-once.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type: 4,
		Body: wasmgen.NewBody().
			GlobalGet(2).I32Const(1).I32Add().GlobalSet(2).
			End(),
	})

	// started() -> run count.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type: 5,
		Body: wasmgen.NewBody().GlobalGet(2).End(),
	})

	// caption(retptr): writes (1024, 5), the static UTF-8 caption.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type: 6,
		Body: wasmgen.NewBody().
			LocalGet(0).I32Const(1024).I32Store(2, 0).
			LocalGet(0).I32Const(5).I32Store(2, 4).
			End(),
	})

	// grow() -> previous size in pages.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type: 5,
		Body: wasmgen.NewBody().I32Const(1).MemoryGrow().End(),
	})

	m.Exports = []wasmgen.Export{
		{Name: "memory", Kind: wasmgen.KindMemory, Index: 0},
		{Name: "malloc", Kind: wasmgen.KindFunc, Index: 0},
		{Name: "realloc", Kind: wasmgen.KindFunc, Index: 1},
		{Name: "free", Kind: wasmgen.KindFunc, Index: 2},
		{Name: "add_to_stack_pointer", Kind: wasmgen.KindFunc, Index: 3},
		{Name: "start", Kind: wasmgen.KindFunc, Index: 4},
		{Name: "started", Kind: wasmgen.KindFunc, Index: 5},
		{Name: "caption", Kind: wasmgen.KindFunc, Index: 6},
		{Name: "grow", Kind: wasmgen.KindFunc, Index: 7},
	}
	return m.Encode()
}

// closureModule exercises the callback surface: it imports closure_wrap and
// cb_drop, exports the trampoline entry points and a module-owned slot
// source, and records every invocation and destruction in exported globals.
func closureModule() []byte {
	m := &wasmgen.Module{
		Types: []wasmgen.FuncType{
			{Params: []wasmgen.ValType{wasmgen.I32, wasmgen.I32, wasmgen.I32, wasmgen.I32, wasmgen.I32}, Results: []wasmgen.ValType{wasmgen.I32}},
			{Params: []wasmgen.ValType{wasmgen.I32}, Results: []wasmgen.ValType{wasmgen.I32}},
			{Params: []wasmgen.ValType{wasmgen.I32, wasmgen.I32, wasmgen.I32, wasmgen.I64}, Results: []wasmgen.ValType{wasmgen.I64}},
			{Params: []wasmgen.ValType{wasmgen.I32, wasmgen.I32, wasmgen.I32}},
			{Results: []wasmgen.ValType{wasmgen.I32}},
			{Params: []wasmgen.ValType{wasmgen.I32}},
		},
		Imports: []wasmgen.Import{
			{Module: IntrinsicNamespace, Name: IntrinsicClosureWrap, Type: 0},
			{Module: IntrinsicNamespace, Name: IntrinsicCbDrop, Type: 1},
		},
		Mem: &wasmgen.Mem{Min: 1},
		Globals: []wasmgen.Global{
			{Type: wasmgen.I32, Mut: true, Init: wasmgen.I32Init(0)}, // last_a
			{Type: wasmgen.I32, Mut: true, Init: wasmgen.I32Init(0)}, // last_b
			{Type: wasmgen.I32, Mut: true, Init: wasmgen.I32Init(0)}, // invokes
			{Type: wasmgen.I32, Mut: true, Init: wasmgen.I32Init(0)}, // destroys
			{Type: wasmgen.I32, Mut: true, Init: wasmgen.I32Init(0)}, // destroy_a
			{Type: wasmgen.I32, Mut: true, Init: wasmgen.I32Init(4)}, // next slot
			{Type: wasmgen.I64, Mut: true, Init: wasmgen.I64Init(0)}, // last_arg
		},
	}

	// cb_invoke(fn, a, b, arg) -> arg+1, recording the environment it saw.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type: 2,
		Body: wasmgen.NewBody().
			LocalGet(1).GlobalSet(0).
			LocalGet(2).GlobalSet(1).
			GlobalGet(2).I32Const(1).I32Add().GlobalSet(2).
			LocalGet(3).GlobalSet(6).
			LocalGet(3).I64Const(1).I64Add().
			End(),
	})

	// cb_destroy(dtor, a, b): counts, and records a for the assertion that
	// the destructor sees the original environment.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type: 3,
		Body: wasmgen.NewBody().
			GlobalGet(3).I32Const(1).I32Add().GlobalSet(3).
			LocalGet(1).GlobalSet(4).
			End(),
	})

	// table_alloc() -> next slot index, monotonic.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type:   4,
		Locals: []wasmgen.ValType{wasmgen.I32},
		Body: wasmgen.NewBody().
			GlobalGet(5).LocalTee(0).
			I32Const(1).I32Add().GlobalSet(5).
			LocalGet(0).
			End(),
	})

	// table_drop(idx): indices are never reused.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type: 5,
		Body: wasmgen.NewBody().End(),
	})

	// make_cb(fn, a, b, dtor, shared) -> handle, via the intrinsic.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type: 0,
		Body: wasmgen.NewBody().
			LocalGet(0).LocalGet(1).LocalGet(2).LocalGet(3).LocalGet(4).
			Call(0).
			End(),
	})

	// drop_cb(handle) -> 1 when the module must reclaim the environment.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type: 1,
		Body: wasmgen.NewBody().
			LocalGet(0).Call(1).
			End(),
	})

	m.Exports = []wasmgen.Export{
		{Name: "memory", Kind: wasmgen.KindMemory, Index: 0},
		{Name: "cb_invoke", Kind: wasmgen.KindFunc, Index: 2},
		{Name: "cb_destroy", Kind: wasmgen.KindFunc, Index: 3},
		{Name: "table_alloc", Kind: wasmgen.KindFunc, Index: 4},
		{Name: "table_drop", Kind: wasmgen.KindFunc, Index: 5},
		{Name: "make_cb", Kind: wasmgen.KindFunc, Index: 6},
		{Name: "drop_cb", Kind: wasmgen.KindFunc, Index: 7},
		{Name: "last_a", Kind: wasmgen.KindGlobal, Index: 0},
		{Name: "last_b", Kind: wasmgen.KindGlobal, Index: 1},
		{Name: "invokes", Kind: wasmgen.KindGlobal, Index: 2},
		{Name: "destroys", Kind: wasmgen.KindGlobal, Index: 3},
		{Name: "destroy_a", Kind: wasmgen.KindGlobal, Index: 4},
		{Name: "last_arg", Kind: wasmgen.KindGlobal, Index: 6},
	}
	return m.Encode()
}

// errorModule exercises the error channel and the string intrinsics. It
// imports a registered host operation that fails, plus take_error,
// string_new and throw.
func errorModule() []byte {
	m := &wasmgen.Module{
		Types: []wasmgen.FuncType{
			{Results: []wasmgen.ValType{wasmgen.I32}},
			{Params: []wasmgen.ValType{wasmgen.I32, wasmgen.I32}, Results: []wasmgen.ValType{wasmgen.I32}},
			{Params: []wasmgen.ValType{wasmgen.I32, wasmgen.I32}},
			{},
		},
		Imports: []wasmgen.Import{
			{Module: "env", Name: "fail", Type: 0},
			{Module: IntrinsicNamespace, Name: IntrinsicTakeError, Type: 0},
			{Module: IntrinsicNamespace, Name: IntrinsicStringNew, Type: 1},
			{Module: IntrinsicNamespace, Name: IntrinsicThrow, Type: 2},
		},
		Mem: &wasmgen.Mem{Min: 1},
		Data: []wasmgen.Data{
			{Offset: 1024, Bytes: []byte("boom")},
			{Offset: 1030, Bytes: []byte{0xff, 0xfe, 0xff}},
			{Offset: 1056, Bytes: []byte("hi")},
		},
	}

	// poke() -> whatever the failing host op produced.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type: 0,
		Body: wasmgen.NewBody().Call(0).End(),
	})
	// take() -> pending error handle.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type: 0,
		Body: wasmgen.NewBody().Call(1).End(),
	})
	// greet() -> handle of the decoded "hi".
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type: 0,
		Body: wasmgen.NewBody().I32Const(1056).I32Const(2).Call(2).End(),
	})
	// greet_bad() -> neutral handle; the bytes are not UTF-8.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type: 0,
		Body: wasmgen.NewBody().I32Const(1030).I32Const(3).Call(2).End(),
	})
	// die(): aborts through the throw intrinsic.
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type: 3,
		Body: wasmgen.NewBody().I32Const(1024).I32Const(4).Call(3).End(),
	})

	m.Exports = []wasmgen.Export{
		{Name: "memory", Kind: wasmgen.KindMemory, Index: 0},
		{Name: "poke", Kind: wasmgen.KindFunc, Index: 4},
		{Name: "take", Kind: wasmgen.KindFunc, Index: 5},
		{Name: "greet", Kind: wasmgen.KindFunc, Index: 6},
		{Name: "greet_bad", Kind: wasmgen.KindFunc, Index: 7},
		{Name: "die", Kind: wasmgen.KindFunc, Index: 8},
	}
	return m.Encode()
}

// importModule builds a module whose only point is to import ns.name.
func importModule(ns, name string) []byte {
	m := &wasmgen.Module{
		Types: []wasmgen.FuncType{
			{Params: []wasmgen.ValType{wasmgen.I32}, Results: []wasmgen.ValType{wasmgen.I32}},
		},
		Imports: []wasmgen.Import{
			{Module: ns, Name: name, Type: 0},
		},
		Mem: &wasmgen.Mem{Min: 1},
	}
	m.Funcs = append(m.Funcs, wasmgen.Func{
		Type: 0,
		Body: wasmgen.NewBody().LocalGet(0).Call(0).End(),
	})
	m.Exports = []wasmgen.Export{
		{Name: "memory", Kind: wasmgen.KindMemory, Index: 0},
		{Name: "poke", Kind: wasmgen.KindFunc, Index: 1},
	}
	return m.Encode()
}
