// Package domainerrors carries coded errors across the service boundary.
//
// Stores return sentinel facts (pkg/platform/sentinel); services translate them
// into coded errors here; transports map codes to status codes. The code is the
// contract with callers, the message is human-readable detail.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code identifies a class of failure callers can branch on.
type Code string

const (
	CodeNotFound            Code = "not_found"
	CodeCampaignNotFound    Code = "campaign_not_found"
	CodeForbidden           Code = "forbidden"
	CodeUnauthorized        Code = "unauthorized"
	CodeInvalidAmount       Code = "invalid_amount"
	CodeAmountMismatch      Code = "amount_mismatch"
	CodeInvalidTransition   Code = "invalid_transition"
	CodeAlreadyVerified     Code = "already_verified"
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeCampaignClosed      Code = "campaign_closed"
	CodeMissingHash         Code = "missing_hash"
	CodeValidation          Code = "validation_failed"
	CodeBadRequest          Code = "bad_request"
	CodeStorageUnavailable  Code = "storage_unavailable"
	CodeInternal            Code = "internal_error"
)

// Error is a coded domain error. Two errors match under errors.Is when their
// codes and messages are equal.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is a coded error with the same code and message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New builds a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error. A nil err yields nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, cause: err}
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost coded error in err's chain has code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability in handlers.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// IsRetryable reports whether the caller may retry the operation with backoff.
// Only transient persistence failures qualify.
func IsRetryable(err error) bool {
	return HasCode(err, CodeStorageUnavailable)
}

// ToHTTPStatus maps a code to the HTTP status used by the JSON transport.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeNotFound, CodeCampaignNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeInvalidAmount, CodeMissingHash, CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeInvalidTransition, CodeAlreadyVerified:
		return http.StatusConflict
	case CodeAmountMismatch, CodeInsufficientBalance, CodeCampaignClosed:
		return http.StatusUnprocessableEntity
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
