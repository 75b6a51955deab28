// Package errors provides structured error types for the callwire library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: container path, Go/wire type names, and cause chain.
//
// The codec taxonomy maps onto kinds:
//
//	TypeMismatch                  KindTypeMismatch
//	SizeInvariantViolation        KindSizeInvariant
//	TruncatedBuffer               KindTruncated
//	UnsupportedReverseConversion  KindUnsupportedReverse
//	EmptyStreamRead               KindEmptyRead
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
//		Path("[1]", "key").
//		GoType("int64").
//		WireType("signed64").
//		Detail("record carries boolean").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Truncated(path, offset, need, have)
//	err := errors.ExitStatus("python3", 1, cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// A Kind is itself an error, so errors.Is(err, errors.KindTruncated) matches
// regardless of phase.
package errors
