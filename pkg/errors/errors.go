// Package errors carries the coded domain errors returned by services and
// rendered by the API layer.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// settlement and fund outcomes
	CodeAlreadyProcessed    Code = "ALREADY_PROCESSED"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeValueMismatch       Code = "VALUE_MISMATCH"
	CodeAlreadyDistributed  Code = "ALREADY_DISTRIBUTED"
)

// Metadata drives how a code is rendered over HTTP. ExposeMessage lets the
// error's own message replace PublicMessage in responses.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	ExposeMessage  bool
}

const (
	retryable = 1 << iota
	withDetails
	expose
)

func meta(status int, msg string, flags int) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  msg,
		Retryable:      flags&retryable != 0,
		DetailsAllowed: flags&withDetails != 0,
		ExposeMessage:  flags&expose != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:          meta(http.StatusBadRequest, "validation failed", withDetails|expose),
	CodeUnauthorized:        meta(http.StatusUnauthorized, "authentication required", expose),
	CodeForbidden:           meta(http.StatusForbidden, "access denied", expose),
	CodeNotFound:            meta(http.StatusNotFound, "resource not found", expose),
	CodeConflict:            meta(http.StatusConflict, "conflict detected", expose),
	CodeStateConflict:       meta(http.StatusUnprocessableEntity, "state transition disallowed", withDetails|expose),
	CodeIdempotency:         meta(http.StatusConflict, "idempotency key reused", withDetails|expose),
	CodeRateLimit:           meta(http.StatusTooManyRequests, "rate limit exceeded", expose),
	CodeInternal:            meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:          meta(http.StatusServiceUnavailable, "dependency unavailable", retryable|withDetails),
	CodeAlreadyProcessed:    meta(http.StatusOK, "already processed", 0),
	CodeInsufficientBalance: meta(http.StatusUnprocessableEntity, "insufficient balance", withDetails|expose),
	CodeValueMismatch:       meta(http.StatusUnprocessableEntity, "value does not match expected amount", withDetails|expose),
	CodeAlreadyDistributed:  meta(http.StatusConflict, "fund already distributed", expose),
}

// MetadataFor falls back to the internal error metadata for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Rewrap annotates err with message while keeping the code it already
// carries. Uncoded errors get fallback.
func Rewrap(fallback Code, err error, message string) *Error {
	code := fallback
	if typed := As(err); typed != nil {
		code = typed.code
	}
	return Wrap(code, err, message)
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// Is matches another *Error by code alone, so a bare New(code, "") works as
// a sentinel with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost coded error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether any coded error in the chain carries code.
func IsCode(err error, code Code) bool {
	for err != nil {
		typed := As(err)
		if typed == nil {
			return false
		}
		if typed.code == code {
			return true
		}
		err = typed.cause
	}
	return false
}

// Retryable reports whether the outermost code marks the failure as transient.
func Retryable(err error) bool {
	typed := As(err)
	return typed != nil && MetadataFor(typed.code).Retryable
}
