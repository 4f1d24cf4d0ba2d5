package wasmgen

import "bytes"

// Opcodes, limited to what the generated modules use.
const (
	opUnreachable byte = 0x00
	opEnd         byte = 0x0b
	opCall        byte = 0x10
	opDrop        byte = 0x1a
	opSelect      byte = 0x1b
	opLocalGet    byte = 0x20
	opLocalTee    byte = 0x22
	opGlobalGet   byte = 0x23
	opGlobalSet   byte = 0x24
	opI32Load     byte = 0x28
	opI32Store    byte = 0x36
	opMemoryGrow  byte = 0x40
	opF64Store    byte = 0x39
	opI32Const    byte = 0x41
	opI64Const    byte = 0x42
	opF64Const    byte = 0x44
	opI32Eq       byte = 0x46
	opI32LtU      byte = 0x49
	opI32Add      byte = 0x6a
	opI32Sub      byte = 0x6b
	opI32And      byte = 0x71
	opI64Add      byte = 0x7c
	opPrefixMisc  byte = 0xfc
	opMemoryCopy  byte = 0x0a
)

// Body assembles one function body instruction by instruction. End seals the
// expression and returns the bytes for Func.Body.
type Body struct {
	buf bytes.Buffer
}

func NewBody() *Body {
	return &Body{}
}

func (b *Body) op(code byte) *Body {
	b.buf.WriteByte(code)
	return b
}

func (b *Body) Unreachable() *Body { return b.op(opUnreachable) }
func (b *Body) Drop() *Body        { return b.op(opDrop) }
func (b *Body) Select() *Body      { return b.op(opSelect) }
func (b *Body) I32Eq() *Body       { return b.op(opI32Eq) }
func (b *Body) I32LtU() *Body      { return b.op(opI32LtU) }
func (b *Body) I32Add() *Body      { return b.op(opI32Add) }
func (b *Body) I32Sub() *Body      { return b.op(opI32Sub) }
func (b *Body) I32And() *Body      { return b.op(opI32And) }
func (b *Body) I64Add() *Body      { return b.op(opI64Add) }

func (b *Body) LocalGet(idx uint32) *Body {
	b.op(opLocalGet)
	writeLEB128u(&b.buf, idx)
	return b
}

func (b *Body) LocalTee(idx uint32) *Body {
	b.op(opLocalTee)
	writeLEB128u(&b.buf, idx)
	return b
}

func (b *Body) GlobalGet(idx uint32) *Body {
	b.op(opGlobalGet)
	writeLEB128u(&b.buf, idx)
	return b
}

func (b *Body) GlobalSet(idx uint32) *Body {
	b.op(opGlobalSet)
	writeLEB128u(&b.buf, idx)
	return b
}

func (b *Body) I32Const(v int32) *Body {
	b.op(opI32Const)
	writeLEB128s(&b.buf, v)
	return b
}

func (b *Body) I64Const(v int64) *Body {
	b.op(opI64Const)
	writeLEB128s64(&b.buf, v)
	return b
}

func (b *Body) F64Const(v float64) *Body {
	b.op(opF64Const)
	writeFloat64(&b.buf, v)
	return b
}

func (b *Body) I32Load(align, offset uint32) *Body {
	b.op(opI32Load)
	writeLEB128u(&b.buf, align)
	writeLEB128u(&b.buf, offset)
	return b
}

func (b *Body) I32Store(align, offset uint32) *Body {
	b.op(opI32Store)
	writeLEB128u(&b.buf, align)
	writeLEB128u(&b.buf, offset)
	return b
}

func (b *Body) F64Store(align, offset uint32) *Body {
	b.op(opF64Store)
	writeLEB128u(&b.buf, align)
	writeLEB128u(&b.buf, offset)
	return b
}

func (b *Body) Call(funcIdx uint32) *Body {
	b.op(opCall)
	writeLEB128u(&b.buf, funcIdx)
	return b
}

// MemoryGrow grows memory 0 by the page count on the stack and leaves the
// previous size in pages.
func (b *Body) MemoryGrow() *Body {
	b.op(opMemoryGrow)
	b.buf.WriteByte(0x00)
	return b
}

// MemoryCopy copies within memory 0; operands on the stack are dst, src, len.
func (b *Body) MemoryCopy() *Body {
	b.op(opPrefixMisc)
	b.buf.WriteByte(opMemoryCopy)
	b.buf.WriteByte(0x00)
	b.buf.WriteByte(0x00)
	return b
}

// End seals the expression.
func (b *Body) End() []byte {
	b.op(opEnd)
	return b.buf.Bytes()
}
