package memview

import (
	"unsafe"

	"github.com/glyphterm/wasm-bridge/errors"
)

// Memory is the slice of module memory access Views needs. Read must return
// a window into the live backing buffer, not a copy, for the zero-copy
// contract to hold; the bridge's wazero adapter and test fakes both do.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Size() uint32
}

// Views caches a whole-memory byte view plus typed reinterpretations of it.
// Not safe for concurrent use; an instance is confined to the goroutine
// driving its module.
type Views struct {
	mem Memory

	bytes []byte
	gen   uint64

	floats    []float32
	floatsGen uint64

	uint32s    []uint32
	uint32sGen uint64
}

// New returns unconstructed views over mem. Nothing is fetched until first use.
func New(mem Memory) *Views {
	return &Views{mem: mem}
}

// Reset drops every cached view. The bridge calls this at bootstrap so the
// first valid buffer generation starts clean.
func (v *Views) Reset() {
	v.bytes = nil
	v.floats = nil
	v.uint32s = nil
	v.gen++
}

// Generation identifies the current byte-view build. It changes every time
// the byte view is rebuilt or reset.
func (v *Views) Generation() uint64 {
	return v.gen
}

// ByteView returns the current whole-memory byte view, rebuilding it when the
// cached one no longer matches the live memory size.
func (v *Views) ByteView() ([]byte, error) {
	size := v.mem.Size()
	if v.bytes == nil || len(v.bytes) == 0 || uint32(len(v.bytes)) != size {
		buf, err := v.mem.Read(0, size)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "refresh byte view")
		}
		v.bytes = buf
		v.gen++
	}
	return v.bytes, nil
}

// FloatView returns the current memory reinterpreted as little-endian 32-bit
// floats. Rebuilt whenever the byte view rebuilds.
func (v *Views) FloatView() ([]float32, error) {
	b, err := v.ByteView()
	if err != nil {
		return nil, err
	}
	if v.floats == nil || v.floatsGen != v.gen {
		if n := len(b) / 4; n > 0 {
			v.floats = unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n)
		} else {
			v.floats = nil
		}
		v.floatsGen = v.gen
	}
	return v.floats, nil
}

// Uint32View returns the current memory reinterpreted as little-endian 32-bit
// unsigned integers.
func (v *Views) Uint32View() ([]uint32, error) {
	b, err := v.ByteView()
	if err != nil {
		return nil, err
	}
	if v.uint32s == nil || v.uint32sGen != v.gen {
		if n := len(b) / 4; n > 0 {
			v.uint32s = unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), n)
		} else {
			v.uint32s = nil
		}
		v.uint32sGen = v.gen
	}
	return v.uint32s, nil
}

// Bytes returns the zero-copy byte subrange [ptr, ptr+length). The range is
// valid only until the next growth event.
func (v *Views) Bytes(ptr, length uint32) ([]byte, error) {
	b, err := v.ByteView()
	if err != nil {
		return nil, err
	}
	if uint64(ptr)+uint64(length) > uint64(len(b)) {
		return nil, errors.OutOfBounds(errors.PhaseDecode, ptr, length)
	}
	return b[ptr : ptr+length : ptr+length], nil
}

// Floats returns count 32-bit floats starting at byte offset ptr, zero-copy.
// ptr must be 4-byte aligned.
func (v *Views) Floats(ptr, count uint32) ([]float32, error) {
	if ptr%4 != 0 {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("float view offset %d is not 4-byte aligned", ptr).
			Build()
	}
	f, err := v.FloatView()
	if err != nil {
		return nil, err
	}
	start := uint64(ptr) / 4
	if start+uint64(count) > uint64(len(f)) {
		return nil, errors.OutOfBounds(errors.PhaseDecode, ptr, count*4)
	}
	return f[start : start+uint64(count) : start+uint64(count)], nil
}

// Uint32s returns count 32-bit unsigned integers starting at byte offset ptr,
// zero-copy. ptr must be 4-byte aligned.
func (v *Views) Uint32s(ptr, count uint32) ([]uint32, error) {
	if ptr%4 != 0 {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("uint32 view offset %d is not 4-byte aligned", ptr).
			Build()
	}
	u, err := v.Uint32View()
	if err != nil {
		return nil, err
	}
	start := uint64(ptr) / 4
	if start+uint64(count) > uint64(len(u)) {
		return nil, errors.OutOfBounds(errors.PhaseDecode, ptr, count*4)
	}
	return u[start : start+uint64(count) : start+uint64(count)], nil
}

// Scalar returns a mixed-width accessor over the current byte view. Like any
// view it must be re-fetched after a call that can grow memory.
func (v *Views) Scalar() (ScalarView, error) {
	b, err := v.ByteView()
	if err != nil {
		return ScalarView{}, err
	}
	return ScalarView{buf: b}, nil
}
