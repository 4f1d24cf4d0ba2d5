package codec

import (
	"unicode/utf8"

	"github.com/glyphterm/wasm-bridge/errors"
	"github.com/glyphterm/wasm-bridge/memview"
)

const (
	// decodeRecycleLimit is the cumulative decoded-byte ceiling per decoder
	// state. Crossing it rebuilds the state so long-lived bridges never
	// accumulate unbounded intern entries or counter wrap.
	decodeRecycleLimit = 2 << 30

	// Interning caps: only short strings are cached, and the cache is
	// dropped wholesale on recycle.
	maxInternLength  = 128
	maxInternEntries = 1024
)

// Decoder turns module memory ranges into host strings.
type Decoder struct {
	views *memview.Views
	inner *decoderState
}

// decoderState is the replaceable part of a Decoder: the cumulative byte
// counter and the intern cache for hot repeated strings.
type decoderState struct {
	decoded uint64
	intern  map[string]string
}

func newDecoderState() *decoderState {
	return &decoderState{intern: make(map[string]string)}
}

// NewDecoder returns a decoder reading through views.
func NewDecoder(views *memview.Views) *Decoder {
	return &Decoder{views: views, inner: newDecoderState()}
}

// Decode reads length bytes at ptr and returns them as a string. Malformed
// UTF-8 is a hard failure. The returned string is a copy and stays valid
// across memory growth.
func (d *Decoder) Decode(ptr, length uint32) (string, error) {
	if length == 0 {
		return "", nil
	}
	if length > MaxStringSize {
		return "", errors.New(errors.PhaseDecode, errors.KindOverflow).
			Detail("string size %d exceeds maximum %d", length, MaxStringSize).
			Build()
	}

	buf, err := d.views.Bytes(ptr, length)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", errors.InvalidUTF8(errors.PhaseDecode, nil, buf)
	}

	// Recycle before the volume ceiling is crossed. Invisible to callers:
	// only the intern cache and the counter are dropped.
	if d.inner.decoded+uint64(length) > decodeRecycleLimit {
		d.inner = newDecoderState()
	}
	d.inner.decoded += uint64(length)

	if s, ok := d.inner.intern[string(buf)]; ok {
		return s, nil
	}
	s := string(buf)
	if len(s) <= maxInternLength && len(d.inner.intern) < maxInternEntries {
		d.inner.intern[s] = s
	}
	return s, nil
}

// DecodeBytes reads length bytes at ptr into a fresh host-owned slice.
func (d *Decoder) DecodeBytes(ptr, length uint32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	buf, err := d.views.Bytes(ptr, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, buf)
	return out, nil
}
