package xdr

import "fmt"

// Kind classifies an Error so callers can branch on failure class with
// errors.As instead of string matching.
type Kind int

const (
	// InvalidBool is returned when a decoded bool word is neither 0 nor 1.
	InvalidBool Kind = iota
	// InvalidOptional is returned when an optional discriminant is
	// neither 0 nor 1.
	InvalidOptional
	// InvalidEnum is returned when a decoded enum value is not one of
	// the type's declared variants.
	InvalidEnum
	// InvalidUnion is returned when a decoded union discriminant matches
	// neither a declared case nor a default arm.
	InvalidUnion
	// BoundExceeded is returned when a bounded string/opaque exceeds its
	// declared maximum length, on encode or decode.
	BoundExceeded
	// UnexpectedEOF is returned when a decode reads past the end of the
	// input buffer.
	UnexpectedEOF
	// DiscriminantMismatch is returned when encoding a union whose
	// tagged arm disagrees with its own discriminant value.
	DiscriminantMismatch
)

func (k Kind) String() string {
	switch k {
	case InvalidBool:
		return "InvalidBool"
	case InvalidOptional:
		return "InvalidOptional"
	case InvalidEnum:
		return "InvalidEnum"
	case InvalidUnion:
		return "InvalidUnion"
	case BoundExceeded:
		return "BoundExceeded"
	case UnexpectedEOF:
		return "UnexpectedEOF"
	case DiscriminantMismatch:
		return "DiscriminantMismatch"
	default:
		return "Unknown"
	}
}

// Error is the codec-level error type. It wraps an optional underlying
// cause so errors.Unwrap keeps working for callers that want it.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapErr(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err is an *Error of the given kind. Callers that want
// the error value itself should use errors.As(err, &xdrErr) directly.
func Is(err error, kind Kind) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	return e.Kind == kind
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
