package godb

import "fmt"

// GoDBErrorCode classifies the errors the core can return.
type GoDBErrorCode int

const (
	// TypeMismatchError indicates a field could not be coerced to the
	// expected type (e.g. while loading a CSV).
	TypeMismatchError GoDBErrorCode = iota
	// AmbiguousNameError indicates a field reference matched more than one
	// column and no table qualifier disambiguated it.
	AmbiguousNameError
	// IncompatibleTypesError indicates a field reference did not resolve
	// against a TupleDesc.
	IncompatibleTypesError
	// MalformedDataError indicates malformed input data, e.g. a CSV line
	// with the wrong number of fields.
	MalformedDataError
	// CacheFullError is the §7 CacheFull error: all cached pages were
	// dirty when an eviction victim was needed.
	CacheFullError
	// TransactionAbortedError is the §7 TransactionAborted error: the
	// wait-for graph found a cycle involving the requesting transaction.
	TransactionAbortedError
	// NotHeldError is the §7 NotHeld error: release of a lock the
	// transaction does not hold in the requested mode.
	NotHeldError
	// BadPageIDError is the §7 BadPageId error: a page outside the file's
	// current extent was requested.
	BadPageIDError
	// IOError wraps a failure from the underlying disk file.
	IOError
	// BadPermissionError is the §7 BadPermission error: an RWPerm value
	// other than ReadPerm/WritePerm was supplied.
	BadPermissionError
)

func (c GoDBErrorCode) String() string {
	switch c {
	case TypeMismatchError:
		return "TypeMismatchError"
	case AmbiguousNameError:
		return "AmbiguousNameError"
	case IncompatibleTypesError:
		return "IncompatibleTypesError"
	case MalformedDataError:
		return "MalformedDataError"
	case CacheFullError:
		return "CacheFullError"
	case TransactionAbortedError:
		return "TransactionAbortedError"
	case NotHeldError:
		return "NotHeldError"
	case BadPageIDError:
		return "BadPageIDError"
	case IOError:
		return "IOError"
	case BadPermissionError:
		return "BadPermissionError"
	default:
		return "UnknownError"
	}
}

// GoDBError is the error type returned throughout the core. It carries a
// GoDBErrorCode so callers can branch on error kind (e.g. the transaction
// boundary recovering only from TransactionAbortedError) without string
// matching.
type GoDBError struct {
	code      GoDBErrorCode
	errString string
}

func (e GoDBError) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.errString)
}

// Code returns the error's GoDBErrorCode.
func (e GoDBError) Code() GoDBErrorCode {
	return e.code
}

func newGoDBError(code GoDBErrorCode, format string, args ...interface{}) GoDBError {
	return GoDBError{code: code, errString: fmt.Sprintf(format, args...)}
}

// IsTransactionAborted reports whether err is a GoDBError carrying
// TransactionAbortedError, the only error kind the engine itself recovers
// from (at the transaction boundary).
func IsTransactionAborted(err error) bool {
	gerr, ok := err.(GoDBError)
	return ok && gerr.code == TransactionAbortedError
}
