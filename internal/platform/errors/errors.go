// Package errors provides a structured error type with wrapping and metadata
//
// Import it as perr. Every error that reaches a handler is either an *Error
// or gets mapped to ErrorCodeUnknown, which renders as a 500.
package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrorCode is the machine facing class of an error
// the numeric values go out on the wire, so only append
type ErrorCode uint16

const (
	ErrorCodeUnknown ErrorCode = iota
	ErrorCodePanic
	ErrorCodeUnavailable
	ErrorCodeTooManyRequests
	ErrorCodeConflict
	ErrorCodeUnauthorized
	ErrorCodeForbidden
	ErrorCodeInvalidArgument
	ErrorCodeValidation
	ErrorCodeJSON
	ErrorCodeNotFound
	ErrorCodeDuplicateKey
	ErrorCodeDB
	// ErrorCodeBusinessRule rejects a request after consulting current state
	ErrorCodeBusinessRule
	// ErrorCodeExternal is a failure reported by the remote system of record
	ErrorCodeExternal
)

var codeInfo = map[ErrorCode]struct {
	name   string
	status int
}{
	ErrorCodeUnknown:         {"unknown", http.StatusInternalServerError},
	ErrorCodePanic:           {"panic", http.StatusInternalServerError},
	ErrorCodeUnavailable:     {"unavailable", http.StatusServiceUnavailable},
	ErrorCodeTooManyRequests: {"too_many_requests", http.StatusTooManyRequests},
	ErrorCodeConflict:        {"conflict", http.StatusConflict},
	ErrorCodeUnauthorized:    {"unauthorized", http.StatusUnauthorized},
	ErrorCodeForbidden:       {"forbidden", http.StatusForbidden},
	ErrorCodeInvalidArgument: {"invalid_argument", http.StatusUnprocessableEntity},
	ErrorCodeValidation:      {"validation", http.StatusBadRequest},
	ErrorCodeJSON:            {"json", http.StatusBadRequest},
	ErrorCodeNotFound:        {"not_found", http.StatusNotFound},
	ErrorCodeDuplicateKey:    {"duplicate_key", http.StatusConflict},
	ErrorCodeDB:              {"db", http.StatusInternalServerError},
	ErrorCodeBusinessRule:    {"business_rule", http.StatusBadRequest},
	ErrorCodeExternal:        {"external", http.StatusInternalServerError},
}

// Status is the HTTP status for c; unregistered codes are 500
func (c ErrorCode) Status() int {
	if ci, ok := codeInfo[c]; ok {
		return ci.status
	}
	return http.StatusInternalServerError
}

func (c ErrorCode) String() string {
	if ci, ok := codeInfo[c]; ok {
		return ci.name
	}
	return fmt.Sprintf("code(%d)", uint16(c))
}

// ErrNotFound is the generic not found sentinel
var ErrNotFound = New(ErrorCodeNotFound, "not found")

// Error carries a code for the client, an optional stable kind and field,
// and the cause it wraps
type Error struct {
	code  ErrorCode
	kind  string
	field string
	msg   string
	orig  error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.orig == nil:
		return e.msg
	}
	return e.msg + ": " + e.orig.Error()
}

func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Field names the offending input field, if any
func (e *Error) Field() string { return e.field }

// Kind returns the kind set on e itself; use KindOf to search the chain
func (e *Error) Kind() string { return e.kind }

// Wire is the client visible part of an error
// the wrapped cause never leaves the process
type Wire struct {
	Code    ErrorCode `json:"code"`
	Kind    string    `json:"kind,omitempty"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
}

// WireFrom flattens err for a response body
// foreign errors become ErrorCodeUnknown with their text as message
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	e, ok := As(err)
	if !ok {
		return Wire{Code: ErrorCodeUnknown, Message: err.Error()}
	}
	return Wire{Code: e.code, Kind: KindOf(err), Message: e.msg, Field: e.field}
}

// As finds the outermost *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	ok := stderrs.As(err, &e)
	return e, ok
}

// CodeOf is the code of the outermost *Error, or ErrorCodeUnknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether CodeOf(err) is code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// HTTPStatus maps any error to a status
func HTTPStatus(err error) int { return CodeOf(err).Status() }

// KindOf returns the first non empty kind in err's chain
// wrapping a kinded error without a kind keeps the inner one visible
func KindOf(err error) string {
	for ; err != nil; err = stderrs.Unwrap(err) {
		if e, ok := err.(*Error); ok && e.kind != "" {
			return e.kind
		}
	}
	return ""
}

// IsKind reports whether err carries kind
func IsKind(err error, kind string) bool { return kind != "" && KindOf(err) == kind }

// WithField returns a copy of err's *Error with field set
// errors that are not ours pass through unchanged
func WithField(err error, field string) error {
	e, ok := As(err)
	if !ok {
		return err
	}
	c := *e
	c.field = field
	return &c
}

// New returns an *Error with a fixed message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns an *Error with a formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap attaches code and message to orig
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf is Wrap with a formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return Wrap(orig, code, fmt.Sprintf(format, a...))
}

// NewKind returns an *Error clients can switch on by kind
func NewKind(code ErrorCode, kind, format string, a ...any) error {
	return &Error{code: code, kind: kind, msg: fmt.Sprintf(format, a...)}
}

// WrapKind is NewKind around a cause
func WrapKind(orig error, code ErrorCode, kind, format string, a ...any) error {
	return &Error{code: code, kind: kind, msg: fmt.Sprintf(format, a...), orig: orig}
}

// NotFoundf is Newf with ErrorCodeNotFound
func NotFoundf(format string, a ...any) error { return Newf(ErrorCodeNotFound, format, a...) }

// JSONErrf is Newf with ErrorCodeJSON
func JSONErrf(format string, a ...any) error { return Newf(ErrorCodeJSON, format, a...) }

// PanicErrf is Newf with ErrorCodePanic
func PanicErrf(format string, a ...any) error { return Newf(ErrorCodePanic, format, a...) }

// Unauthorizedf is Newf with ErrorCodeUnauthorized
func Unauthorizedf(format string, a ...any) error { return Newf(ErrorCodeUnauthorized, format, a...) }

// Validationf is Newf with ErrorCodeValidation
func Validationf(format string, a ...any) error { return Newf(ErrorCodeValidation, format, a...) }
