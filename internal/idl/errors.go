package idl

import "fmt"

// ParseErrorKind classifies a parse or resolution failure.
type ParseErrorKind int

const (
	UnexpectedToken ParseErrorKind = iota
	UndefinedType
	UndefinedConstant
	DuplicateName
	DuplicateEnumValue
	NumberOutOfRange
)

func (k ParseErrorKind) String() string {
	switch k {
	case UnexpectedToken:
		return "UnexpectedToken"
	case UndefinedType:
		return "UndefinedType"
	case UndefinedConstant:
		return "UndefinedConstant"
	case DuplicateName:
		return "DuplicateName"
	case DuplicateEnumValue:
		return "DuplicateEnumValue"
	case NumberOutOfRange:
		return "NumberOutOfRange"
	default:
		return "Unknown"
	}
}

// ParseError reports where in the source text a parse or resolution
// failure occurred, with a short snippet of the offending line for
// diagnostics.
type ParseError struct {
	Kind    ParseErrorKind
	Line    int
	Column  int
	Snippet string
	Msg     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at %d:%d: %s (near %q)", e.Kind, e.Line, e.Column, e.Msg, e.Snippet)
}
