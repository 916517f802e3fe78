// Package faults carries the error taxonomy shared by every domain
// service: handlers switch on the kind to pick a response status, so a
// caller can tell "fix your input" from "try again later" from "this is
// permanently gone".
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindGone         Kind = "gone"
	KindConflict     Kind = "conflict"
	KindState        Kind = "state"
	KindRateLimited  Kind = "rate_limited"
	KindUnavailable  Kind = "unavailable"
	KindInternal     Kind = "internal"
)

// Error is a classified domain error. Fields carries itemized
// per-field messages for validation failures.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

// New builds a classified error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a validation error with itemized field messages.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func Validationf(format string, args ...any) *Error { return New(KindValidation, format, args...) }
func Forbiddenf(format string, args ...any) *Error  { return New(KindForbidden, format, args...) }
func NotFoundf(format string, args ...any) *Error   { return New(KindNotFound, format, args...) }
func Gonef(format string, args ...any) *Error       { return New(KindGone, format, args...) }
func Conflictf(format string, args ...any) *Error   { return New(KindConflict, format, args...) }
func Statef(format string, args ...any) *Error      { return New(KindState, format, args...) }
func Internalf(format string, args ...any) *Error   { return New(KindInternal, format, args...) }

// KindOf extracts the kind from any error; unclassified errors are internal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
