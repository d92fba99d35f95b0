package dcxml

import (
	"fmt"
)

// ErrorKind is the category of a serialization error.
type ErrorKind int

const (
	// ContractError is raised once when the contract of a type cannot be
	// built. It is terminal for that type.
	ContractError ErrorKind = iota + 1

	// WireFormatError is raised when a node of the document is malformed.
	WireFormatError

	// IntegrityError is raised when the document is well-formed but violates
	// the semantic of the contracts, like a value type carrying an id.
	IntegrityError

	// QuotaError is raised when the item budget of an operation is exceeded.
	QuotaError
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case ContractError:
		return "contract"
	case WireFormatError:
		return "wire format"
	case IntegrityError:
		return "integrity"
	case QuotaError:
		return "quota"
	default:
		return "unknown"
	}
}

var (
	// ErrContract can be used with errors.Is to detect contract errors.
	ErrContract = &Error{Kind: ContractError}

	// ErrWireFormat can be used with errors.Is to detect wire format errors.
	ErrWireFormat = &Error{Kind: WireFormatError}

	// ErrIntegrity can be used with errors.Is to detect integrity errors.
	ErrIntegrity = &Error{Kind: IntegrityError}

	// ErrQuota can be used with errors.Is to detect quota errors.
	ErrQuota = &Error{Kind: QuotaError}
)

// Error is the single error category of the serialization engine. The
// position is set when the error happened while reading a document.
type Error struct {
	Kind    ErrorKind
	Message string
	Line    int
	Column  int
}

// NewError returns a new error of the given kind.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// At returns a copy of the error positioned at the given line and column. An
// error that already has a position keeps it.
func (e *Error) At(line, column int) *Error {
	if e.Line > 0 || line <= 0 {
		return e
	}

	cp := *e
	cp.Line = line
	cp.Column = column

	return &cp
}

// Error implements error.
func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s error at %d:%d: %s", e.Kind, e.Line, e.Column, e.Message)
	}

	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Is returns true when the target is an error of the same kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)

	return ok && other.Kind == e.Kind
}
