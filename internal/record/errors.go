package record

import (
	"errors"
	"fmt"
)

// Error is the error type surfaced by store, lifecycle and decrypt
// operations.
//
// Errors fall into these categories:
//   - Validation: bad input to submit
//   - Not found: the record id has no blob on the ledger
//   - Unauthorized: caller is not the record owner
//   - Invalid transition: the status change is not allowed
//   - Format: a ciphertext or blob could not be parsed
//   - Store unavailable: the ledger is unreachable or not initialized
//   - Signature rejected: the signer declined or the caller cancelled
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// RecordID identifies the affected record, when there is one.
	RecordID string

	// Err is the underlying cause (optional).
	Err error
}

// ErrorCode categorizes record errors.
type ErrorCode string

const (
	ErrCodeValidation        ErrorCode = "VALIDATION"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeFormat            ErrorCode = "FORMAT"
	ErrCodeStoreUnavailable  ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeSignatureRejected ErrorCode = "SIGNATURE_REJECTED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RecordID != "" {
		msg = fmt.Sprintf("%s (record=%s)", msg, e.RecordID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "" if
// there is none.
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func IsValidation(err error) bool        { return hasCode(err, ErrCodeValidation) }
func IsNotFound(err error) bool          { return hasCode(err, ErrCodeNotFound) }
func IsUnauthorized(err error) bool      { return hasCode(err, ErrCodeUnauthorized) }
func IsInvalidTransition(err error) bool { return hasCode(err, ErrCodeInvalidTransition) }
func IsFormat(err error) bool            { return hasCode(err, ErrCodeFormat) }
func IsStoreUnavailable(err error) bool  { return hasCode(err, ErrCodeStoreUnavailable) }
func IsSignatureRejected(err error) bool { return hasCode(err, ErrCodeSignatureRejected) }

// NewValidationError creates an Error for rejected submit input.
func NewValidationError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError creates an Error for a record id with no blob.
func NewNotFoundError(id string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: "record not found", RecordID: id}
}

// NewUnauthorizedError creates an Error for a caller that does not own the record.
func NewUnauthorizedError(id, caller string) *Error {
	return &Error{
		Code:     ErrCodeUnauthorized,
		Message:  fmt.Sprintf("caller %q is not the record owner", caller),
		RecordID: id,
	}
}

// NewInvalidTransitionError creates an Error for a disallowed status change.
func NewInvalidTransitionError(id string, from, to Status) *Error {
	return &Error{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("cannot move from %s to %s", from, to),
		RecordID: id,
	}
}

// NewFormatError creates an Error for unparseable ciphertext or blob data.
func NewFormatError(message string, cause error) *Error {
	return &Error{Code: ErrCodeFormat, Message: message, Err: cause}
}

// NewStoreUnavailableError wraps a ledger failure.
func NewStoreUnavailableError(op string, cause error) *Error {
	return &Error{Code: ErrCodeStoreUnavailable, Message: op, Err: cause}
}

// NewSignatureRejectedError creates an Error for a declined or cancelled signature.
func NewSignatureRejectedError(message string, cause error) *Error {
	return &Error{Code: ErrCodeSignatureRejected, Message: message, Err: cause}
}
