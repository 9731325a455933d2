package domain

import (
	"errors"
	"fmt"
)

// Code is the stable identifier surfaced to API callers.
type Code string

const (
	CodeValidation        Code = "validation_error"
	CodeInsufficientFunds Code = "insufficient_funds"
	CodeNotFound          Code = "not_found"
	CodeAlreadyTerminal   Code = "already_terminal"
	CodeBusy              Code = "busy"
	CodeCodeExhausted     Code = "code_exhausted"
	CodeForbidden         Code = "forbidden"
	CodeTooManyAttempts   Code = "too_many_attempts"
	CodeInternal          Code = "internal"
)

// Error is a typed domain failure. Two errors match under errors.Is when their codes match.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrValidation        = &Error{Code: CodeValidation, Message: "invalid request"}
	ErrInsufficientFunds = &Error{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyTerminal   = &Error{Code: CodeAlreadyTerminal, Message: "transfer is no longer pending"}
	ErrBusy              = &Error{Code: CodeBusy, Message: "resource busy, retry later"}
	ErrCodeExhausted     = &Error{Code: CodeCodeExhausted, Message: "could not allocate a transfer code, retry later"}
	ErrForbidden         = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrTooManyAttempts   = &Error{Code: CodeTooManyAttempts, Message: "too many failed attempts"}
	ErrInternal          = &Error{Code: CodeInternal, Message: "internal error"}
)

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Busy wraps a lock-contention cause.
func Busy(cause error) error {
	return &Error{Code: CodeBusy, Message: ErrBusy.Message, Err: cause}
}

// CodeOf returns the domain code of err, or CodeInternal for anything untyped.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsDomain reports whether err carries a domain code.
func IsDomain(err error) bool {
	var de *Error
	return errors.As(err, &de)
}

// Retryable reports whether the caller may safely retry the same request.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeBusy, CodeCodeExhausted:
		return true
	}
	return false
}
