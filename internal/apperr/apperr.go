// Package apperr classifies failures that cross the API boundary.
//
// Every expected failure is an *Error carrying one of a closed set of kinds.
// The kind fixes the HTTP status code; the message may be overridden. Errors
// that were not built through this package are programming failures and are
// never shown verbatim to callers.
package apperr

import (
	"errors"
	"net/http"
	"strings"
)

type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// StatusCode is the HTTP status sent alongside an error of this kind.
func (k Kind) StatusCode() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) defaultMessage() string {
	switch k {
	case KindValidation:
		return "Validation failed"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "Resource not found"
	case KindConflict:
		return "Resource already exists"
	default:
		return "Internal server error"
	}
}

// FieldError names one violated constraint on one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrConflict     = &Error{Kind: KindConflict}
)

func newError(kind Kind, message string) *Error {
	if message == "" {
		message = kind.defaultMessage()
	}
	return &Error{Kind: kind, Message: message}
}

// Validation reports every supplied field error, in order.
func Validation(fields ...FieldError) *Error {
	e := newError(KindValidation, "")
	if len(fields) > 0 {
		e.Fields = append([]FieldError(nil), fields...)
	}
	return e
}

func Unauthorized(message string) *Error { return newError(KindUnauthorized, message) }

func Forbidden(message string) *Error { return newError(KindForbidden, message) }

func NotFound(message string) *Error { return newError(KindNotFound, message) }

func Conflict(message string) *Error { return newError(KindConflict, message) }

// Internal marks err as an unexpected failure. Its text is for logs only.
func Internal(err error) *Error {
	e := newError(KindInternal, "")
	e.Err = err
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	b.WriteString(e.Message)
	for i, f := range e.Fields {
		if i == 0 {
			b.WriteString(" (")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(f.Field)
		b.WriteString(": ")
		b.WriteString(f.Message)
		if i == len(e.Fields)-1 {
			b.WriteString(")")
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func (e *Error) StatusCode() int { return e.Kind.StatusCode() }

// Operational reports whether the error is an expected outcome that may be
// shown to the caller.
func (e *Error) Operational() bool { return e.Kind != KindInternal }

// WithMessage returns a copy with the message replaced; the status is unchanged.
func (e *Error) WithMessage(message string) *Error {
	cp := *e
	if message != "" {
		cp.Message = message
	}
	return &cp
}

// Wrap returns a copy that records cause for logging.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

func StatusCode(err error) int {
	return KindOf(err).StatusCode()
}

func IsOperational(err error) bool {
	e, ok := As(err)
	return ok && e.Operational()
}

// FromStatus rebuilds an error from a status code received over the wire.
func FromStatus(status int, message string, fields []FieldError) *Error {
	var kind Kind
	switch status {
	case http.StatusBadRequest:
		kind = KindValidation
	case http.StatusUnauthorized:
		kind = KindUnauthorized
	case http.StatusForbidden:
		kind = KindForbidden
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusConflict:
		kind = KindConflict
	default:
		kind = KindInternal
	}
	e := newError(kind, message)
	if len(fields) > 0 {
		e.Fields = fields
	}
	return e
}
