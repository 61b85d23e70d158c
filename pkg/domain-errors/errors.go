// Package domainerrors defines the error codes the service layer speaks in.
//
// Stores return sentinel facts (see pkg/platform/sentinel); services translate
// them into a *Error carrying a Code, and transports map the Code onto their
// own status space (see ToHTTPStatus).
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	// CodeBadRequest is a malformed request (missing form field, bad encoding).
	CodeBadRequest Code = "bad_request"
	// CodeValidation is well-formed input that violates a domain rule.
	CodeValidation Code = "validation_error"
	// CodeUnauthorized is a missing or wrong credential.
	CodeUnauthorized Code = "unauthorized"
	// CodeTooLarge is a request body over the accepted size.
	CodeTooLarge Code = "request_too_large"
	// CodeNotFound is a lookup that matched nothing.
	CodeNotFound Code = "not_found"
	// CodeConflict is a uniqueness violation that could not be resolved.
	CodeConflict Code = "conflict"
	// CodeDataAccess is a store that could not be read or written.
	CodeDataAccess Code = "data_access_error"
	// CodeInternal is any other unexpected fault.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Message is safe to show to callers; Err is
// the underlying cause and is only used for logging and errors.Is/As.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error without an underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and caller-facing message to err.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeDataAccess:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
