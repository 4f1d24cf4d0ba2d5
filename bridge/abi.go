package bridge

// Export names the bridge resolves on the module, with the fallbacks seen
// across toolchains.
const (
	ExportMemory = "memory"

	ExportAlloc   = "malloc"
	ExportRealloc = "realloc"
	ExportFree    = "free"

	// Legacy names from Rust-centric toolchains
	legacyAlloc = "alloc"
	legacyFree  = "dealloc"

	ExportStack = "add_to_stack_pointer"

	ExportStart       = "start"
	legacyStart       = "_start"
	ExportTableAlloc  = "table_alloc"
	ExportTableDrop   = "table_drop"
	ExportCallbackInv = "cb_invoke"
	ExportCallbackDtr = "cb_destroy"
)

// IntrinsicNamespace is the import namespace carrying the bridge's own
// boundary functions, as opposed to registered host operations.
const IntrinsicNamespace = "bridge"

// Intrinsic function names under IntrinsicNamespace.
const (
	IntrinsicStringNew   = "string_new"
	IntrinsicDropRef     = "drop_ref"
	IntrinsicClosureWrap = "closure_wrap"
	IntrinsicCbDrop      = "cb_drop"
	IntrinsicTakeError   = "take_error"
	IntrinsicThrow       = "throw"
)

var (
	allocNames   = []string{ExportAlloc, legacyAlloc}
	reallocNames = []string{ExportRealloc}
	freeNames    = []string{ExportFree, legacyFree}
	startNames   = []string{ExportStart, legacyStart}
)
