package memview

import (
	"encoding/binary"
	"math"

	"github.com/glyphterm/wasm-bridge/errors"
)

// ScalarView reads and writes mixed-width little-endian scalars at arbitrary
// byte offsets of one buffer generation. Multi-field results written by the
// module through a return pointer are read through this view.
type ScalarView struct {
	buf []byte
}

// Len returns the viewed buffer length in bytes.
func (s ScalarView) Len() uint32 {
	return uint32(len(s.buf))
}

func (s ScalarView) check(offset, n uint32) error {
	if uint64(offset)+uint64(n) > uint64(len(s.buf)) {
		return errors.OutOfBounds(errors.PhaseDecode, offset, n)
	}
	return nil
}

// Uint8 reads an unsigned 8-bit value at offset.
func (s ScalarView) Uint8(offset uint32) (uint8, error) {
	if err := s.check(offset, 1); err != nil {
		return 0, err
	}
	return s.buf[offset], nil
}

// Uint16 reads an unsigned little-endian 16-bit value at offset.
func (s ScalarView) Uint16(offset uint32) (uint16, error) {
	if err := s.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(s.buf[offset:]), nil
}

// Uint32 reads an unsigned little-endian 32-bit value at offset.
func (s ScalarView) Uint32(offset uint32) (uint32, error) {
	if err := s.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(s.buf[offset:]), nil
}

// Int32 reads a signed little-endian 32-bit value at offset.
func (s ScalarView) Int32(offset uint32) (int32, error) {
	u, err := s.Uint32(offset)
	return int32(u), err
}

// Uint64 reads an unsigned little-endian 64-bit value at offset.
func (s ScalarView) Uint64(offset uint32) (uint64, error) {
	if err := s.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(s.buf[offset:]), nil
}

// Float32 reads a little-endian 32-bit float at offset.
func (s ScalarView) Float32(offset uint32) (float32, error) {
	u, err := s.Uint32(offset)
	return math.Float32frombits(u), err
}

// Float64 reads a little-endian 64-bit float at offset.
func (s ScalarView) Float64(offset uint32) (float64, error) {
	u, err := s.Uint64(offset)
	return math.Float64frombits(u), err
}

// SetUint8 writes an unsigned 8-bit value at offset.
func (s ScalarView) SetUint8(offset uint32, value uint8) error {
	if err := s.checkWrite(offset, 1); err != nil {
		return err
	}
	s.buf[offset] = value
	return nil
}

// SetUint16 writes an unsigned little-endian 16-bit value at offset.
func (s ScalarView) SetUint16(offset uint32, value uint16) error {
	if err := s.checkWrite(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(s.buf[offset:], value)
	return nil
}

// SetUint32 writes an unsigned little-endian 32-bit value at offset.
func (s ScalarView) SetUint32(offset uint32, value uint32) error {
	if err := s.checkWrite(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(s.buf[offset:], value)
	return nil
}

// SetInt32 writes a signed little-endian 32-bit value at offset.
func (s ScalarView) SetInt32(offset uint32, value int32) error {
	return s.SetUint32(offset, uint32(value))
}

// SetUint64 writes an unsigned little-endian 64-bit value at offset.
func (s ScalarView) SetUint64(offset uint32, value uint64) error {
	if err := s.checkWrite(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(s.buf[offset:], value)
	return nil
}

// SetFloat32 writes a little-endian 32-bit float at offset.
func (s ScalarView) SetFloat32(offset uint32, value float32) error {
	return s.SetUint32(offset, math.Float32bits(value))
}

// SetFloat64 writes a little-endian 64-bit float at offset.
func (s ScalarView) SetFloat64(offset uint32, value float64) error {
	return s.SetUint64(offset, math.Float64bits(value))
}

func (s ScalarView) checkWrite(offset, n uint32) error {
	if uint64(offset)+uint64(n) > uint64(len(s.buf)) {
		return errors.OutOfBounds(errors.PhaseEncode, offset, n)
	}
	return nil
}
