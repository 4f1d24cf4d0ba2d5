package wasmgen

import (
	"bytes"
	"encoding/binary"
	"math"
)

// LEB128 encoding utilities for the WebAssembly binary format

// writeLEB128u writes an unsigned LEB128 value
func writeLEB128u(w *bytes.Buffer, v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.WriteByte(b)
		if v == 0 {
			break
		}
	}
}

// writeLEB128s writes a signed LEB128 value
func writeLEB128s(w *bytes.Buffer, v int32) {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		w.WriteByte(b)
	}
}

// writeLEB128s64 writes a signed 64-bit LEB128 value
func writeLEB128s64(w *bytes.Buffer, v int64) {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		w.WriteByte(b)
	}
}

// writeFloat64 writes a little-endian float64
func writeFloat64(w *bytes.Buffer, v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	w.Write(buf[:])
}

// writeName writes a length-prefixed UTF-8 name
func writeName(w *bytes.Buffer, s string) {
	writeLEB128u(w, uint32(len(s)))
	w.WriteString(s)
}
