package memview

import (
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"math"
	"testing"

	"github.com/glyphterm/wasm-bridge/errors"
)

// testMem implements Memory with a replaceable backing buffer so growth can
// be simulated the way real linear memory behaves: a new, larger array.
type testMem struct {
	data []byte
}

func newTestMem(size int) *testMem {
	return &testMem{data: make([]byte, size)}
}

func (m *testMem) Read(offset uint32, length uint32) ([]byte, error) {
	if uint64(offset)+uint64(length) > uint64(len(m.data)) {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return m.data[offset : offset+length], nil
}

func (m *testMem) Size() uint32 {
	return uint32(len(m.data))
}

func (m *testMem) grow(extra int) {
	next := make([]byte, len(m.data)+extra)
	copy(next, m.data)
	m.data = next
}

func TestByteView_CachesUntilGrowth(t *testing.T) {
	mem := newTestMem(64)
	v := New(mem)

	first, err := v.ByteView()
	if err != nil {
		t.Fatalf("ByteView failed: %v", err)
	}
	gen := v.Generation()

	second, err := v.ByteView()
	if err != nil {
		t.Fatalf("ByteView failed: %v", err)
	}
	if v.Generation() != gen {
		t.Fatalf("generation changed without growth: %d -> %d", gen, v.Generation())
	}
	if &first[0] != &second[0] {
		t.Fatal("repeated ByteView returned a different buffer")
	}

	// Zero-copy: a write to the underlying memory is visible through the view.
	mem.data[10] = 0xAB
	if first[10] != 0xAB {
		t.Fatal("view is not aliasing the live buffer")
	}
}

func TestByteView_InvalidatedByGrowth(t *testing.T) {
	mem := newTestMem(32)
	v := New(mem)

	old, err := v.ByteView()
	if err != nil {
		t.Fatalf("ByteView failed: %v", err)
	}
	oldGen := v.Generation()

	mem.grow(32)
	mem.data[40] = 0x7F

	fresh, err := v.ByteView()
	if err != nil {
		t.Fatalf("ByteView after growth failed: %v", err)
	}
	if v.Generation() == oldGen {
		t.Fatal("generation did not advance after growth")
	}
	if len(fresh) != 64 {
		t.Fatalf("fresh view length = %d, want 64", len(fresh))
	}
	if fresh[40] != 0x7F {
		t.Fatal("fresh view does not reflect the new buffer")
	}
	if len(old) != 32 {
		t.Fatalf("stale view changed length: %d", len(old))
	}
}

func TestBytes_Subrange(t *testing.T) {
	mem := newTestMem(16)
	copy(mem.data, []byte{0, 1, 2, 3, 4, 5, 6, 7})
	v := New(mem)

	sub, err := v.Bytes(2, 4)
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if len(sub) != 4 || sub[0] != 2 || sub[3] != 5 {
		t.Fatalf("subrange = %v, want [2 3 4 5]", sub)
	}

	// Zero-copy both directions.
	sub[1] = 0xEE
	if mem.data[3] != 0xEE {
		t.Fatal("write through subrange not visible in memory")
	}
}

func TestBytes_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		ptr    uint32
		length uint32
		ok     bool
	}{
		{"inside", 0, 16, true},
		{"empty at end", 16, 0, true},
		{"past end", 12, 5, false},
		{"offset past end", 17, 0, false},
		{"overflowing sum", 0xFFFFFFFF, 2, false},
	}

	mem := newTestMem(16)
	v := New(mem)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Bytes(tt.ptr, tt.length)
			if tt.ok && err != nil {
				t.Fatalf("Bytes(%d, %d) failed: %v", tt.ptr, tt.length, err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatalf("Bytes(%d, %d) succeeded, want out of bounds", tt.ptr, tt.length)
				}
				var be *errors.Error
				if !stderrors.As(err, &be) || be.Kind != errors.KindOutOfBounds {
					t.Fatalf("error = %v, want out_of_bounds", err)
				}
			}
		})
	}
}

func TestFloats(t *testing.T) {
	mem := newTestMem(32)
	binary.LittleEndian.PutUint32(mem.data[8:], math.Float32bits(1.5))
	binary.LittleEndian.PutUint32(mem.data[12:], math.Float32bits(-2.25))
	v := New(mem)

	f, err := v.Floats(8, 2)
	if err != nil {
		t.Fatalf("Floats failed: %v", err)
	}
	if f[0] != 1.5 || f[1] != -2.25 {
		t.Fatalf("floats = %v, want [1.5 -2.25]", f)
	}

	// Writes through the typed view land in memory.
	f[0] = 3.75
	if got := math.Float32frombits(binary.LittleEndian.Uint32(mem.data[8:])); got != 3.75 {
		t.Fatalf("memory after float write = %v, want 3.75", got)
	}

	if _, err := v.Floats(6, 1); err == nil {
		t.Fatal("unaligned offset accepted")
	}
	if _, err := v.Floats(28, 2); err == nil {
		t.Fatal("out of range float read accepted")
	}
}

func TestUint32s(t *testing.T) {
	mem := newTestMem(16)
	binary.LittleEndian.PutUint32(mem.data[4:], 0xCAFEBABE)
	v := New(mem)

	u, err := v.Uint32s(4, 1)
	if err != nil {
		t.Fatalf("Uint32s failed: %v", err)
	}
	if u[0] != 0xCAFEBABE {
		t.Fatalf("u[0] = %#x, want 0xCAFEBABE", u[0])
	}

	if _, err := v.Uint32s(2, 1); err == nil {
		t.Fatal("unaligned offset accepted")
	}
	if _, err := v.Uint32s(12, 2); err == nil {
		t.Fatal("out of range read accepted")
	}
}

func TestScalar_MixedWidths(t *testing.T) {
	mem := newTestMem(32)
	v := New(mem)

	sc, err := v.Scalar()
	if err != nil {
		t.Fatalf("Scalar failed: %v", err)
	}

	if err := sc.SetUint32(0, 0xDEAD); err != nil {
		t.Fatalf("SetUint32 failed: %v", err)
	}
	if err := sc.SetFloat64(8, 6.25); err != nil {
		t.Fatalf("SetFloat64 failed: %v", err)
	}
	if err := sc.SetInt32(16, -7); err != nil {
		t.Fatalf("SetInt32 failed: %v", err)
	}
	if err := sc.SetUint16(20, 0xBEEF); err != nil {
		t.Fatalf("SetUint16 failed: %v", err)
	}
	if err := sc.SetFloat32(24, 0.5); err != nil {
		t.Fatalf("SetFloat32 failed: %v", err)
	}

	if got, _ := sc.Uint32(0); got != 0xDEAD {
		t.Errorf("Uint32(0) = %#x, want 0xDEAD", got)
	}
	if got, _ := sc.Float64(8); got != 6.25 {
		t.Errorf("Float64(8) = %v, want 6.25", got)
	}
	if got, _ := sc.Int32(16); got != -7 {
		t.Errorf("Int32(16) = %d, want -7", got)
	}
	if got, _ := sc.Uint16(20); got != 0xBEEF {
		t.Errorf("Uint16(20) = %#x, want 0xBEEF", got)
	}
	if got, _ := sc.Float32(24); got != 0.5 {
		t.Errorf("Float32(24) = %v, want 0.5", got)
	}
	if got, _ := sc.Uint8(0); got != 0xAD {
		t.Errorf("Uint8(0) = %#x, want low byte 0xAD", got)
	}
	if got, _ := sc.Uint64(8); got != math.Float64bits(6.25) {
		t.Errorf("Uint64(8) = %#x, want float bits", got)
	}
}

func TestScalar_Bounds(t *testing.T) {
	mem := newTestMem(8)
	v := New(mem)
	sc, _ := v.Scalar()

	if _, err := sc.Uint64(1); err == nil {
		t.Error("Uint64 past end accepted")
	}
	if _, err := sc.Uint32(6); err == nil {
		t.Error("Uint32 past end accepted")
	}
	if err := sc.SetUint64(4, 1); err == nil {
		t.Error("SetUint64 past end accepted")
	}
	if sc.Len() != 8 {
		t.Errorf("Len = %d, want 8", sc.Len())
	}
}

func TestReset(t *testing.T) {
	mem := newTestMem(16)
	v := New(mem)

	if _, err := v.ByteView(); err != nil {
		t.Fatalf("ByteView failed: %v", err)
	}
	gen := v.Generation()

	v.Reset()
	if v.Generation() == gen {
		t.Fatal("Reset did not advance the generation")
	}

	fresh, err := v.ByteView()
	if err != nil {
		t.Fatalf("ByteView after Reset failed: %v", err)
	}
	if uint32(len(fresh)) != mem.Size() {
		t.Fatalf("rebuilt view length = %d, want %d", len(fresh), mem.Size())
	}
}

func TestTypedViewsFollowByteView(t *testing.T) {
	mem := newTestMem(16)
	v := New(mem)

	f1, err := v.FloatView()
	if err != nil {
		t.Fatalf("FloatView failed: %v", err)
	}
	if len(f1) != 4 {
		t.Fatalf("float view length = %d, want 4", len(f1))
	}

	mem.grow(16)
	f2, err := v.FloatView()
	if err != nil {
		t.Fatalf("FloatView after growth failed: %v", err)
	}
	if len(f2) != 8 {
		t.Fatalf("float view length after growth = %d, want 8", len(f2))
	}
}

func TestEmptyMemory(t *testing.T) {
	mem := newTestMem(0)
	v := New(mem)

	b, err := v.ByteView()
	if err != nil {
		t.Fatalf("ByteView on empty memory failed: %v", err)
	}
	if len(b) != 0 {
		t.Fatalf("byte view length = %d, want 0", len(b))
	}
	if _, err := v.Bytes(0, 1); err == nil {
		t.Fatal("read of empty memory accepted")
	}
}
