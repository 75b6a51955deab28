package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseEncode    Phase = "encode"    // Go value to wire
	PhaseDecode    Phase = "decode"    // wire to Go value
	PhaseNormalize Phase = "normalize" // concrete type lookup
	PhaseCall      Phase = "call"      // external program invocation
	PhaseLoad      Phase = "load"      // module or exchange file loading
	PhaseParse     Phase = "parse"     // type expressions, YAML input
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch       Kind = "type_mismatch"
	KindSizeInvariant      Kind = "size_invariant"
	KindTruncated          Kind = "truncated"
	KindUnsupportedReverse Kind = "unsupported_reverse"
	KindEmptyRead          Kind = "empty_read"
	KindOverflow           Kind = "overflow"
	KindPrecisionLoss      Kind = "precision_loss"
	KindUnsupported        Kind = "unsupported"
	KindInvalidData        Kind = "invalid_data"
	KindNilPointer         Kind = "nil_pointer"
	KindExitStatus         Kind = "exit_status"
	KindNotInitialized     Kind = "not_initialized"
	KindInvalidInput       Kind = "invalid_input"
)

// Error implements the error interface so a bare Kind can be used as an
// errors.Is target matching any phase.
func (k Kind) Error() string {
	return string(k)
}

// Phase-independent sentinels for errors.Is.
var (
	ErrTypeMismatch       error = KindTypeMismatch
	ErrSizeInvariant      error = KindSizeInvariant
	ErrTruncated          error = KindTruncated
	ErrUnsupportedReverse error = KindUnsupportedReverse
	ErrEmptyRead          error = KindEmptyRead
)

// Error is the structured error type used throughout callwire
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	GoType   string
	WireType string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.WireType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.WireType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", wire type ")
			b.WriteString(e.WireType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("wire type ")
			b.WriteString(e.WireType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.WireType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. An *Error target matches on
// Phase and Kind, a Kind target on Kind alone.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case *Error:
		return e.Phase == t.Phase && e.Kind == t.Kind
	case Kind:
		return e.Kind == t
	}
	return false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return "", false
		}
		err = u.Unwrap()
	}
	return "", false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the container path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// WireType sets the canonical wire type name
func (b *Builder) WireType(t string) *Builder {
	b.err.WireType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the codec taxonomy

// TypeMismatch creates a tag mismatch error: the record on the wire carries
// got, the requested Go type needs want.
func TypeMismatch(phase Phase, path []string, goType, want, got string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Path:     path,
		GoType:   goType,
		WireType: want,
		Detail:   fmt.Sprintf("record carries %s", got),
	}
}

// SizeInvariant creates an error for a payload whose length disagrees with
// the fixed width its wire type requires.
func SizeInvariant(phase Phase, path []string, wireType string, want, got uint64) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindSizeInvariant,
		Path:     path,
		WireType: wireType,
		Detail:   fmt.Sprintf("payload length %d, want %d", got, want),
		Value:    got,
	}
}

// Truncated creates an error for a read that would cross the window end.
func Truncated(path []string, offset int, need, have uint64) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindTruncated,
		Path:   path,
		Detail: fmt.Sprintf("need %d bytes at offset %d, window has %d", need, offset, have),
	}
}

// UnsupportedReverse creates an error for a write-only concrete type used
// as a decode target.
func UnsupportedReverse(path []string, goType, wireType string) *Error {
	return &Error{
		Phase:    PhaseDecode,
		Kind:     KindUnsupportedReverse,
		Path:     path,
		GoType:   goType,
		WireType: wireType,
		Detail:   "type can be written but not read back",
	}
}

// EmptyRead creates an error for a typed read on an exhausted window.
func EmptyRead(path []string, goType string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindEmptyRead,
		Path:   path,
		GoType: goType,
		Detail: "window exhausted",
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, path []string, goType, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Path:   path,
		GoType: goType,
		Detail: what,
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, path []string, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   path,
		GoType: goType,
		Detail: "nil pointer",
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		GoType: targetType,
		Detail: fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:  value,
	}
}

// PrecisionLoss creates an error for a float that does not survive narrowing.
func PrecisionLoss(phase Phase, path []string, value float64, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindPrecisionLoss,
		Path:   path,
		GoType: targetType,
		Detail: fmt.Sprintf("value %v is not representable as %s", value, targetType),
		Value:  value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Call package convenience constructors

// ExitStatus creates an error for an external program that exited non-zero.
func ExitStatus(program string, code int, cause error) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindExitStatus,
		Detail: fmt.Sprintf("%s exited with status %d", program, code),
		Value:  code,
		Cause:  cause,
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Load creates an exchange or module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
