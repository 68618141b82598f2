// Package errs defines the closed set of error kinds surfaced by every
// layer of the relational engine, from the tokenizer up through the
// database facade.
package errs

import "fmt"

// Kind is a closed enumeration of the error categories a caller can act
// on. New values must not be added without updating every switch that
// matches on Kind exhaustively.
type Kind int

const (
	// Success is never wrapped in an Error; it exists so callers can
	// compare a Kind against the zero value meaningfully.
	Success Kind = iota
	// Continue is an internal marker used while evaluating WHERE
	// expressions; it must never escape the view package.
	Continue
	MoreData
	InvalidHandle
	OutOfMemory
	InvalidData
	InvalidParameter
	OpenFailed
	NotFound
	NoMoreItems
	UnknownProperty
	BadQuerySyntax
	InvalidField
	InvalidTable
	FunctionFailed
	DatatypeMismatch
	InvalidDatatype
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "SUCCESS"
	case Continue:
		return "CONTINUE"
	case MoreData:
		return "MORE_DATA"
	case InvalidHandle:
		return "INVALID_HANDLE"
	case OutOfMemory:
		return "OUT_OF_MEMORY"
	case InvalidData:
		return "INVALID_DATA"
	case InvalidParameter:
		return "INVALID_PARAMETER"
	case OpenFailed:
		return "OPEN_FAILED"
	case NotFound:
		return "NOT_FOUND"
	case NoMoreItems:
		return "NO_MORE_ITEMS"
	case UnknownProperty:
		return "UNKNOWN_PROPERTY"
	case BadQuerySyntax:
		return "BAD_QUERY_SYNTAX"
	case InvalidField:
		return "INVALID_FIELD"
	case InvalidTable:
		return "INVALID_TABLE"
	case FunctionFailed:
		return "FUNCTION_FAILED"
	case DatatypeMismatch:
		return "DATATYPE_MISMATCH"
	case InvalidDatatype:
		return "INVALID_DATATYPE"
	default:
		return "UNKNOWN_KIND"
	}
}

// Error is the concrete error type returned across every component
// boundary. Op names the operation that failed (e.g. "stringpool.Intern")
// so a caller aggregating errors from several layers can tell where one
// originated without parsing the message text.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with no wrapped cause.
func New(op string, kind Kind) *Error {
	return &Error{Op: op, Kind: kind}
}

// Wrap builds an Error around a lower-level cause.
func Wrap(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Is reports whether err carries the given Kind, unwrapping through any
// number of layered *Error values.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		break
	}
	return false
}

// KindOf extracts the Kind from err, or Success if err is nil, or
// FunctionFailed if err is a non-*Error.
func KindOf(err error) Kind {
	if err == nil {
		return Success
	}
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return FunctionFailed
}
