package bridge

import (
	"github.com/tetratelabs/wazero/api"

	wasmbridge "github.com/glyphterm/wasm-bridge"
	"github.com/glyphterm/wasm-bridge/errors"
)

// Memory adapts a wazero linear memory to the bridge interfaces. Read
// returns a window into the live backing buffer, so callers must not hold
// the slice across anything that can grow the memory; the memview package
// layers generation tracking on top for exactly that reason.
type Memory struct {
	mem api.Memory
}

// NewMemory wraps a wazero memory.
func NewMemory(mem api.Memory) *Memory {
	return &Memory{mem: mem}
}

// Size returns the current memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

// Read returns a zero-copy view of [offset, offset+length).
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	buf, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseBoundary, offset, length)
	}
	return buf, nil
}

// Write copies data into memory at offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseBoundary, offset, uint32(len(data)))
	}
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseBoundary, offset, 1)
	}
	return v, nil
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseBoundary, offset, 2)
	}
	return v, nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseBoundary, offset, 4)
	}
	return v, nil
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseBoundary, offset, 8)
	}
	return v, nil
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return errors.OutOfBounds(errors.PhaseBoundary, offset, 1)
	}
	return nil
}

func (m *Memory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseBoundary, offset, 2)
	}
	return nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseBoundary, offset, 4)
	}
	return nil
}

func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseBoundary, offset, 8)
	}
	return nil
}

// Compile-time check that Memory implements the bridge interfaces
var (
	_ wasmbridge.Memory      = (*Memory)(nil)
	_ wasmbridge.MemorySizer = (*Memory)(nil)
)
