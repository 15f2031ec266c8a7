package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DomainError represents a domain error with a structured error code.
//
// Codes have the form "SM-<CLASS>-<NNNN>". Codes in the FATAL class mark
// invariant violations that the embedding process must never retry.
type DomainError struct {
	Code    string // Error code (e.g., "SM-IDX-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with fmt.Sprintf formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// fatalCodePrefix marks the unrecoverable error class.
const fatalCodePrefix = "SM-FATAL-"

// IsFatal reports whether err is (or wraps) a fatal inconsistency.
//
// A fatal error means the two indexes could be desynchronized by carrying
// on. Callers must abort the operation, must not retry, and must not
// commit the transaction they were building.
func IsFatal(err error) bool {
	return strings.HasPrefix(GetErrorCode(err), fatalCodePrefix)
}

// ============================================================================
// Index Errors (IDX)
// ============================================================================

var (
	// ErrNotFound indicates the object has no entry in the index.
	ErrNotFound = NewDomainError("SM-IDX-4040", "object not found in snap index")

	// ErrFormat indicates stored bytes are malformed or of an unsupported version.
	ErrFormat = NewDomainError("SM-IDX-4220", "malformed index value")

	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("SM-IDX-4000", "invalid argument")
)

// ============================================================================
// Fatal Inconsistencies (FATAL)
// ============================================================================

var (
	// ErrFatalInconsistency is the generic fatal inconsistency.
	ErrFatalInconsistency = NewDomainError("SM-FATAL-5000", "fatal index inconsistency")

	// ErrPartitionOwnership indicates an object was routed to a mapper that
	// does not own its partition.
	ErrPartitionOwnership = NewDomainError("SM-FATAL-5001", "object outside owned partition")

	// ErrDuplicateObject indicates an object was added twice.
	ErrDuplicateObject = NewDomainError("SM-FATAL-5002", "object already indexed")

	// ErrSnapSetMismatch indicates the caller's expected snap set differs
	// from the stored one.
	ErrSnapSetMismatch = NewDomainError("SM-FATAL-5003", "stored snap set does not match expected")

	// ErrCorruptMapping indicates a stored entry disagrees with the key it
	// was read from, or holds an empty snap set.
	ErrCorruptMapping = NewDomainError("SM-FATAL-5004", "index entry does not match its key")
)
