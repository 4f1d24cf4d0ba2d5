// Package errors provides structured error types for the wasm-bridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes the boundary path, a cause chain, and an
// optional captured value for errors that travel through the pending-error
// channel back into the module.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBoundary, errors.KindInvalidInput).
//		Path("storage", "set_item").
//		Detail("empty key").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidUTF8(errors.PhaseDecode, path, data)
//	err := errors.OutOfBounds(errors.PhaseEncode, ptr, length)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
