package codec

import (
	"unicode/utf16"
	"unicode/utf8"

	wasmbridge "github.com/glyphterm/wasm-bridge"
	"github.com/glyphterm/wasm-bridge/errors"
	"github.com/glyphterm/wasm-bridge/memview"
)

// MaxStringSize is the maximum size of a single encoded or decoded string (16 MB).
const MaxStringSize = 16 << 20

// Encoder writes host strings and buffers into module memory through the
// module's exported allocator.
type Encoder struct {
	views   *memview.Views
	alloc   wasmbridge.Allocator
	realloc wasmbridge.Reallocator
	lastLen uint32
}

// NewEncoder returns an encoder backed by views and alloc. realloc may be
// nil, which disables the ASCII fast path in favor of single exact-size
// allocations.
func NewEncoder(views *memview.Views, alloc wasmbridge.Allocator, realloc wasmbridge.Reallocator) *Encoder {
	return &Encoder{views: views, alloc: alloc, realloc: realloc}
}

// LastLen returns the byte length of the most recent Encode or EncodeBytes.
// The pointer returned by the encode and this length form one result and must
// be consumed together; the next encode overwrites the register.
func (e *Encoder) LastLen() uint32 {
	return e.lastLen
}

// Encode writes s into module memory and returns the pointer to its first
// byte. The byte length is available from LastLen until the next encode.
func (e *Encoder) Encode(s string) (uint32, error) {
	if len(s) > MaxStringSize {
		return 0, errors.New(errors.PhaseEncode, errors.KindOverflow).
			Detail("string size %d exceeds maximum %d", len(s), MaxStringSize).
			Build()
	}
	if !utf8.ValidString(s) {
		return 0, errors.InvalidUTF8(errors.PhaseEncode, nil, []byte(s))
	}

	if e.realloc == nil {
		return e.encodeOnePass(s)
	}

	// Fast path: byte length equals character length for ASCII, so the
	// initial allocation is exact whenever the scan completes.
	budget := uint32(len(s))
	ptr, err := e.alloc.Alloc(budget, 1)
	if err != nil {
		return 0, allocError(budget, err)
	}

	k := asciiPrefixLen(s)
	if k > 0 {
		buf, err := e.views.Bytes(ptr, budget)
		if err != nil {
			return 0, err
		}
		copy(buf[:k], s[:k])
	}
	if k == uint32(len(s)) {
		e.lastLen = k
		return ptr, nil
	}

	// Worst case for the remaining text: three bytes per UTF-16 unit.
	// Supplementary-plane runes count two units, keeping the bound valid
	// for their four-byte encodings.
	capacity := k + utf16UnitsIn(s[k:])*3
	ptr, err = e.realloc.Realloc(ptr, budget, capacity, 1)
	if err != nil {
		return 0, allocError(capacity, err)
	}

	// The reallocation may have grown memory; the old view is dead.
	buf, err := e.views.Bytes(ptr, capacity)
	if err != nil {
		return 0, err
	}
	written := k + uint32(copy(buf[k:], s[k:]))

	// Shrink to the exact encoded length so no trailing garbage survives.
	ptr, err = e.realloc.Realloc(ptr, capacity, written, 1)
	if err != nil {
		return 0, allocError(written, err)
	}
	e.lastLen = written
	return ptr, nil
}

// EncodeBytes copies b into module memory and returns the pointer. The
// length is available from LastLen until the next encode.
func (e *Encoder) EncodeBytes(b []byte) (uint32, error) {
	if len(b) > MaxStringSize {
		return 0, errors.New(errors.PhaseEncode, errors.KindOverflow).
			Detail("buffer size %d exceeds maximum %d", len(b), MaxStringSize).
			Build()
	}

	n := uint32(len(b))
	ptr, err := e.alloc.Alloc(n, 1)
	if err != nil {
		return 0, allocError(n, err)
	}
	if n > 0 {
		buf, err := e.views.Bytes(ptr, n)
		if err != nil {
			return 0, err
		}
		copy(buf, b)
	}
	e.lastLen = n
	return ptr, nil
}

func (e *Encoder) encodeOnePass(s string) (uint32, error) {
	n := uint32(len(s))
	ptr, err := e.alloc.Alloc(n, 1)
	if err != nil {
		return 0, allocError(n, err)
	}
	if n > 0 {
		buf, err := e.views.Bytes(ptr, n)
		if err != nil {
			return 0, err
		}
		copy(buf, s)
	}
	e.lastLen = n
	return ptr, nil
}

// asciiPrefixLen returns the length of the leading ASCII run of s. Byte
// positions below 0x80 are always rune boundaries.
func asciiPrefixLen(s string) uint32 {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return uint32(i)
		}
	}
	return uint32(len(s))
}

func utf16UnitsIn(s string) uint32 {
	var n uint32
	for _, r := range s {
		n += uint32(utf16.RuneLen(r))
	}
	return n
}

func allocError(size uint32, cause error) *errors.Error {
	return errors.New(errors.PhaseEncode, errors.KindAllocation).
		Cause(cause).
		Detail("failed to allocate %d bytes for string data", size).
		Build()
}
