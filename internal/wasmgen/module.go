package wasmgen

import (
	"bytes"
	"encoding/binary"
)

const (
	// Magic is the \0asm preamble.
	Magic   uint32 = 0x6d736100
	Version uint32 = 1
)

// Section IDs
const (
	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionMemory   byte = 5
	sectionGlobal   byte = 6
	sectionExport   byte = 7
	sectionStart    byte = 8
	sectionCode     byte = 10
	sectionData     byte = 11
)

// ValType is a WebAssembly value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
	F32 ValType = 0x7d
	F64 ValType = 0x7c
)

// Export kinds
const (
	KindFunc   byte = 0
	KindMemory byte = 2
	KindGlobal byte = 3
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Import is a function import. Index space: imports come before local
// functions, in declaration order.
type Import struct {
	Module string
	Name   string
	Type   uint32
}

// Func is a local function: a type index plus a body produced by Body.End.
type Func struct {
	Type   uint32
	Locals []ValType
	Body   []byte
}

// Mem declares the module memory in 64 KiB pages.
type Mem struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// Global declares one global. Init is a full constant expression including
// the end opcode; see I32Init.
type Global struct {
	Type ValType
	Mut  bool
	Init []byte
}

// Export names a function, memory or global.
type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

// Data is an active data segment placed at a constant offset in memory 0.
type Data struct {
	Offset uint32
	Bytes  []byte
}

// Module assembles a WebAssembly binary from its parts.
type Module struct {
	Types   []FuncType
	Imports []Import
	Funcs   []Func
	Mem     *Mem
	Globals []Global
	Exports []Export
	Start   *uint32
	Data    []Data
}

// I32Init builds a constant i32 initializer expression.
func I32Init(v int32) []byte {
	var buf bytes.Buffer
	buf.WriteByte(opI32Const)
	writeLEB128s(&buf, v)
	buf.WriteByte(opEnd)
	return buf.Bytes()
}

// I64Init builds a constant i64 initializer expression.
func I64Init(v int64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(opI64Const)
	writeLEB128s64(&buf, v)
	buf.WriteByte(opEnd)
	return buf.Bytes()
}

// Encode produces the binary module.
func (m *Module) Encode() []byte {
	w := &bytes.Buffer{}

	var preamble [8]byte
	binary.LittleEndian.PutUint32(preamble[0:4], Magic)
	binary.LittleEndian.PutUint32(preamble[4:8], Version)
	w.Write(preamble[:])

	if len(m.Types) > 0 {
		sec := &bytes.Buffer{}
		writeLEB128u(sec, uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.WriteByte(0x60)
			writeValTypes(sec, ft.Params)
			writeValTypes(sec, ft.Results)
		}
		writeSection(w, sectionType, sec.Bytes())
	}

	if len(m.Imports) > 0 {
		sec := &bytes.Buffer{}
		writeLEB128u(sec, uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			writeName(sec, imp.Module)
			writeName(sec, imp.Name)
			sec.WriteByte(KindFunc)
			writeLEB128u(sec, imp.Type)
		}
		writeSection(w, sectionImport, sec.Bytes())
	}

	if len(m.Funcs) > 0 {
		sec := &bytes.Buffer{}
		writeLEB128u(sec, uint32(len(m.Funcs)))
		for _, fn := range m.Funcs {
			writeLEB128u(sec, fn.Type)
		}
		writeSection(w, sectionFunction, sec.Bytes())
	}

	if m.Mem != nil {
		sec := &bytes.Buffer{}
		writeLEB128u(sec, 1)
		if m.Mem.HasMax {
			sec.WriteByte(0x01)
			writeLEB128u(sec, m.Mem.Min)
			writeLEB128u(sec, m.Mem.Max)
		} else {
			sec.WriteByte(0x00)
			writeLEB128u(sec, m.Mem.Min)
		}
		writeSection(w, sectionMemory, sec.Bytes())
	}

	if len(m.Globals) > 0 {
		sec := &bytes.Buffer{}
		writeLEB128u(sec, uint32(len(m.Globals)))
		for _, g := range m.Globals {
			sec.WriteByte(byte(g.Type))
			if g.Mut {
				sec.WriteByte(0x01)
			} else {
				sec.WriteByte(0x00)
			}
			sec.Write(g.Init)
		}
		writeSection(w, sectionGlobal, sec.Bytes())
	}

	if len(m.Exports) > 0 {
		sec := &bytes.Buffer{}
		writeLEB128u(sec, uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			writeName(sec, exp.Name)
			sec.WriteByte(exp.Kind)
			writeLEB128u(sec, exp.Index)
		}
		writeSection(w, sectionExport, sec.Bytes())
	}

	if m.Start != nil {
		sec := &bytes.Buffer{}
		writeLEB128u(sec, *m.Start)
		writeSection(w, sectionStart, sec.Bytes())
	}

	if len(m.Funcs) > 0 {
		sec := &bytes.Buffer{}
		writeLEB128u(sec, uint32(len(m.Funcs)))
		for _, fn := range m.Funcs {
			body := &bytes.Buffer{}
			writeLocals(body, fn.Locals)
			body.Write(fn.Body)
			writeLEB128u(sec, uint32(body.Len()))
			sec.Write(body.Bytes())
		}
		writeSection(w, sectionCode, sec.Bytes())
	}

	if len(m.Data) > 0 {
		sec := &bytes.Buffer{}
		writeLEB128u(sec, uint32(len(m.Data)))
		for _, d := range m.Data {
			sec.WriteByte(0x00)
			sec.WriteByte(opI32Const)
			writeLEB128s(sec, int32(d.Offset))
			sec.WriteByte(opEnd)
			writeLEB128u(sec, uint32(len(d.Bytes)))
			sec.Write(d.Bytes)
		}
		writeSection(w, sectionData, sec.Bytes())
	}

	return w.Bytes()
}

// IsModule reports whether b starts with a version-1 WebAssembly preamble.
func IsModule(b []byte) bool {
	if len(b) < 8 {
		return false
	}
	return binary.LittleEndian.Uint32(b[0:4]) == Magic &&
		binary.LittleEndian.Uint32(b[4:8]) == Version
}

func writeSection(w *bytes.Buffer, id byte, data []byte) {
	w.WriteByte(id)
	writeLEB128u(w, uint32(len(data)))
	w.Write(data)
}

func writeValTypes(w *bytes.Buffer, types []ValType) {
	writeLEB128u(w, uint32(len(types)))
	for _, t := range types {
		w.WriteByte(byte(t))
	}
}

// writeLocals encodes the local declarations as run-length groups.
func writeLocals(w *bytes.Buffer, locals []ValType) {
	var groups []struct {
		count uint32
		typ   ValType
	}
	for _, t := range locals {
		if n := len(groups); n > 0 && groups[n-1].typ == t {
			groups[n-1].count++
			continue
		}
		groups = append(groups, struct {
			count uint32
			typ   ValType
		}{1, t})
	}
	writeLEB128u(w, uint32(len(groups)))
	for _, g := range groups {
		writeLEB128u(w, g.count)
		w.WriteByte(byte(g.typ))
	}
}
