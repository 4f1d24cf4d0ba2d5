package wasmbridge

// Memory is byte-level access to a module's linear memory.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of linear memory in bytes.
// The size only grows; any cached view over the memory is stale as
// soon as the reported size no longer matches the view's length.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory inside the module's linear memory,
// normally by calling the module's exported malloc/free pair.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}

// Reallocator grows or shrinks an allocation in place or by moving it.
// Optional: string encoding falls back to a single exact-size allocation
// when the module does not export a realloc.
type Reallocator interface {
	Realloc(ptr, oldSize, newSize, align uint32) (uint32, error)
}
