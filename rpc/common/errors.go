package common

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the error type returned by every dMPI layer. It wraps a return
// code (of type RetCode) and a human readable message. Two errors are
// considered equal by errors.Is if their codes match, so callers can test
// against the sentinels below no matter which message was attached.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("dMPI error (code %s)", e.Code)
	}
	return fmt.Sprintf("dMPI error (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is a *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and a formatted message.
func NewError(code RetCode, format string, args ...interface{}) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Sentinels for errors.Is checks
var (
	ErrInvalidRank       = &Error{Code: RetCInvalidRank}
	ErrMalformedLayout   = &Error{Code: RetCMalformedLayout}
	ErrTypeNotCommitted  = &Error{Code: RetCTypeNotCommitted}
	ErrAlreadyCommitted  = &Error{Code: RetCAlreadyCommitted}
	ErrCountMismatch     = &Error{Code: RetCCountMismatch}
	ErrRequestCompleted  = &Error{Code: RetCRequestCompleted}
	ErrFinalized         = &Error{Code: RetCFinalized}
	ErrAborted           = &Error{Code: RetCAborted}
	ErrTransport         = &Error{Code: RetCTransport}
	ErrInvalidOp         = &Error{Code: RetCInvalidOp}
	ErrInvalidConfig     = &Error{Code: RetCInvalidConfig}
	ErrUnsupportedFormat = &Error{Code: RetCUnsupportedFormat}
	ErrInvalidTag        = &Error{Code: RetCInvalidTag}
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess           RetCode = iota // 0: Operation completed successfully.
	RetCInvalidRank                      // 1: Rank outside [0, size) of the communicator.
	RetCMalformedLayout                  // 2: Composite field arrays of mismatched length or out of bounds.
	RetCTypeNotCommitted                 // 3: Composite type used before commit.
	RetCAlreadyCommitted                 // 4: Composite type committed twice.
	RetCCountMismatch                    // 5: Element counts do not fit the collective.
	RetCRequestCompleted                 // 6: Request waited on more than once.
	RetCFinalized                        // 7: Environment already finalized.
	RetCAborted                          // 8: The communicator was aborted.
	RetCTransport                        // 9: The transport substrate failed.
	RetCInvalidOp                        // 10: Unknown reduction operator.
	RetCInvalidConfig                    // 11: The world configuration is invalid.
	RetCUnsupportedFormat                // 12: Unknown serializer, transport or compression.
	RetCInvalidTag                       // 13: Negative tag on a send.
)

// String returns the name of the return code.
func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInvalidRank:
		return "InvalidRank"
	case RetCMalformedLayout:
		return "MalformedLayout"
	case RetCTypeNotCommitted:
		return "TypeNotCommitted"
	case RetCAlreadyCommitted:
		return "AlreadyCommitted"
	case RetCCountMismatch:
		return "CountMismatch"
	case RetCRequestCompleted:
		return "RequestCompleted"
	case RetCFinalized:
		return "Finalized"
	case RetCAborted:
		return "Aborted"
	case RetCTransport:
		return "Transport"
	case RetCInvalidOp:
		return "InvalidOp"
	case RetCInvalidConfig:
		return "InvalidConfig"
	case RetCUnsupportedFormat:
		return "UnsupportedFormat"
	case RetCInvalidTag:
		return "InvalidTag"
	default:
		return "Unknown"
	}
}
