package wasmgen

import (
	"bytes"
	"testing"
)

func TestEncode_Preamble(t *testing.T) {
	m := &Module{Mem: &Mem{Min: 1}}
	b := m.Encode()

	want := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if len(b) < len(want) || !bytes.Equal(b[:8], want) {
		t.Fatalf("preamble = % x, want % x", b[:8], want)
	}
	if !IsModule(b) {
		t.Fatal("IsModule rejected its own output")
	}
}

func TestIsModule(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want bool
	}{
		{"empty", nil, false},
		{"short", []byte{0x00, 0x61, 0x73}, false},
		{"wrong magic", []byte{0x7f, 0x45, 0x4c, 0x46, 0x01, 0x00, 0x00, 0x00}, false},
		{"wrong version", []byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00}, false},
		{"valid", []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsModule(tc.in); got != tc.want {
				t.Fatalf("IsModule = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEncode_SectionOrder(t *testing.T) {
	start := uint32(0)
	m := &Module{
		Types: []FuncType{
			{},
			{Params: []ValType{I32}, Results: []ValType{I32}},
		},
		Imports: []Import{{Module: "bridge", Name: "drop_ref", Type: 1}},
		Funcs: []Func{
			{Type: 0, Body: NewBody().End()},
		},
		Mem:     &Mem{Min: 1, Max: 4, HasMax: true},
		Globals: []Global{{Type: I32, Mut: true, Init: I32Init(4096)}},
		Exports: []Export{
			{Name: "memory", Kind: KindMemory, Index: 0},
			{Name: "noop", Kind: KindFunc, Index: 1},
		},
		Start: &start,
		Data:  []Data{{Offset: 1024, Bytes: []byte("caf\xc3\xa9")}},
	}
	b := m.Encode()

	var ids []byte
	pos := 8
	for pos < len(b) {
		id := b[pos]
		pos++
		size, n := readLEB(t, b[pos:])
		pos += n + int(size)
		ids = append(ids, id)
	}
	want := []byte{
		sectionType, sectionImport, sectionFunction, sectionMemory,
		sectionGlobal, sectionExport, sectionStart, sectionCode, sectionData,
	}
	if !bytes.Equal(ids, want) {
		t.Fatalf("section ids = %v, want %v", ids, want)
	}
	if pos != len(b) {
		t.Fatalf("trailing %d bytes after last section", len(b)-pos)
	}
}

func TestBody_Instructions(t *testing.T) {
	got := NewBody().
		LocalGet(0).
		I32Const(1024).
		I32Store(2, 0).
		End()
	want := []byte{0x20, 0x00, 0x41, 0x80, 0x08, 0x36, 0x02, 0x00, 0x0b}
	if !bytes.Equal(got, want) {
		t.Fatalf("body = % x, want % x", got, want)
	}
}

func TestBody_MemoryCopy(t *testing.T) {
	got := NewBody().MemoryCopy().End()
	want := []byte{0xfc, 0x0a, 0x00, 0x00, 0x0b}
	if !bytes.Equal(got, want) {
		t.Fatalf("memory.copy = % x, want % x", got, want)
	}
}

func TestLEB128(t *testing.T) {
	t.Run("unsigned", func(t *testing.T) {
		cases := []struct {
			v    uint32
			want []byte
		}{
			{0, []byte{0x00}},
			{127, []byte{0x7f}},
			{128, []byte{0x80, 0x01}},
			{624485, []byte{0xe5, 0x8e, 0x26}},
		}
		for _, tc := range cases {
			var buf bytes.Buffer
			writeLEB128u(&buf, tc.v)
			if !bytes.Equal(buf.Bytes(), tc.want) {
				t.Fatalf("leb128u(%d) = % x, want % x", tc.v, buf.Bytes(), tc.want)
			}
		}
	})
	t.Run("signed", func(t *testing.T) {
		cases := []struct {
			v    int32
			want []byte
		}{
			{0, []byte{0x00}},
			{63, []byte{0x3f}},
			{64, []byte{0xc0, 0x00}},
			{-1, []byte{0x7f}},
			{-64, []byte{0x40}},
			{-123456, []byte{0xc0, 0xbb, 0x78}},
		}
		for _, tc := range cases {
			var buf bytes.Buffer
			writeLEB128s(&buf, tc.v)
			if !bytes.Equal(buf.Bytes(), tc.want) {
				t.Fatalf("leb128s(%d) = % x, want % x", tc.v, buf.Bytes(), tc.want)
			}
		}
	})
}

// readLEB decodes one unsigned LEB128 value, returning it and the bytes read.
func readLEB(t *testing.T, b []byte) (uint32, int) {
	t.Helper()
	var v uint32
	var shift uint
	for i, c := range b {
		v |= uint32(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1
		}
		shift += 7
	}
	t.Fatal("truncated LEB128 value")
	return 0, 0
}
