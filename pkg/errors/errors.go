// Package errors defines the typed error used across services. A Code decides
// the HTTP status and the public message an API caller sees. The wrapped
// cause stays server side and only reaches the logs.
package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeStateConflict       Code = "STATE_CONFLICT"
	CodeIdempotency         Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit           Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal            Code = "INTERNAL_ERROR"
	CodeDependency          Code = "DEPENDENCY_ERROR"
	CodeCardNotActive       Code = "CARD_NOT_ACTIVE"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeLimitExceeded       Code = "LIMIT_EXCEEDED"
	CodeConcurrency         Code = "CONCURRENCY_CONFLICT"
	CodeDuplicateIdentifier Code = "DUPLICATE_IDENTIFIER"
)

// Metadata is how a code is presented over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	// ExposeMessage lets the error's own message replace PublicMessage.
	ExposeMessage bool
}

type metaOpt func(*Metadata)

var (
	retryable   metaOpt = func(m *Metadata) { m.Retryable = true }
	withDetails metaOpt = func(m *Metadata) { m.DetailsAllowed = true }
	ownMessage  metaOpt = func(m *Metadata) { m.ExposeMessage = true }
)

func meta(status int, public string, opts ...metaOpt) Metadata {
	m := Metadata{HTTPStatus: status, PublicMessage: public}
	for _, o := range opts {
		o(&m)
	}
	return m
}

var registry = map[Code]Metadata{
	CodeValidation:   meta(http.StatusBadRequest, "validation failed", withDetails, ownMessage),
	CodeUnauthorized: meta(http.StatusUnauthorized, "authentication required", ownMessage),
	CodeForbidden:    meta(http.StatusForbidden, "access denied", ownMessage),
	CodeNotFound:     meta(http.StatusNotFound, "resource not found", ownMessage),
	CodeConflict:     meta(http.StatusConflict, "conflict detected", ownMessage),
	CodeRateLimit:    meta(http.StatusTooManyRequests, "rate limit exceeded", ownMessage),
	CodeIdempotency:  meta(http.StatusConflict, "idempotency key reused", withDetails, ownMessage),
	CodeConcurrency:  meta(http.StatusConflict, "concurrent update detected, retry the operation", retryable),

	CodeStateConflict:       meta(http.StatusUnprocessableEntity, "state transition disallowed", withDetails, ownMessage),
	CodeCardNotActive:       meta(http.StatusUnprocessableEntity, "card is not active", withDetails, ownMessage),
	CodeInsufficientBalance: meta(http.StatusUnprocessableEntity, "insufficient balance", withDetails, ownMessage),
	CodeLimitExceeded:       meta(http.StatusUnprocessableEntity, "amount exceeds limit", withDetails, ownMessage),

	CodeInternal:            meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDuplicateIdentifier: meta(http.StatusInternalServerError, "could not allocate a unique identifier"),
	CodeDependency:          meta(http.StatusServiceUnavailable, "dependency unavailable", retryable, withDetails),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if m, ok := registry[code]; ok {
		return m
	}
	return registry[CodeInternal]
}

// Error is a coded error. The zero of *Error reads as CodeInternal.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
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

// WithDetails sets the payload returned to clients for codes that allow it.
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
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether the outermost *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
