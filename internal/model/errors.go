package model

import (
	"errors"
)

// ErrorKind classifies failures surfaced to callers.
type ErrorKind string

const (
	ErrFormat            ErrorKind = "format_error"
	ErrUnsupportedFormat ErrorKind = "unsupported_format"
	ErrDecode            ErrorKind = "decode_error"
	ErrNotFound          ErrorKind = "not_found"
	ErrEmptyInput        ErrorKind = "empty_input"
	ErrProvider          ErrorKind = "provider_error"
	ErrNotDeleted        ErrorKind = "not_deleted"
)

// Error is a classified failure. Message is safe to return to callers verbatim;
// Err keeps the underlying cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so callers can test with
// errors.Is(err, &model.Error{Kind: model.ErrNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// NewError returns a classified error with an optional cause.
func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the caller-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
