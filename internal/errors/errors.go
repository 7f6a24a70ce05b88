// Package errors provides the ECMAScript error-kind taxonomy used throughout
// the runtime, plus source-position formatting for diagnostics.
package errors

import (
	"fmt"
)

// Kind classifies a throwable runtime error by ECMAScript constructor name.
// A Kind of zero (KindNone) marks a Go-level fatal error rather than a
// catchable script exception.
type Kind uint8

const (
	KindNone Kind = iota
	KindTypeError
	KindRangeError
	KindReferenceError
	KindSyntaxError
	KindURIError
)

// String returns the ECMAScript constructor name for the kind.
func (k Kind) String() string {
	switch k {
	case KindTypeError:
		return "TypeError"
	case KindRangeError:
		return "RangeError"
	case KindReferenceError:
		return "ReferenceError"
	case KindSyntaxError:
		return "SyntaxError"
	case KindURIError:
		return "URIError"
	default:
		return "Error"
	}
}

// Position identifies a location in source text, 1-indexed.
type Position struct {
	Line   int
	Column int
	File   string
}

func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Error is a catchable runtime error: a Kind, a message, and an optional
// source position. It wraps an underlying cause when one triggered it, so
// %w chains reach from gc/vm/runtime back up to the CLI.
type Error struct {
	Kind    Kind
	Message string
	Pos     *Position
	Cause   error
}

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind that wraps cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// At returns a copy of e with the position set.
func (e *Error) At(pos Position) *Error {
	cp := *e
	cp.Pos = &pos
	return &cp
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Kind.String() + ": " + e.Message
	if e.Pos != nil {
		msg = e.Pos.String() + ": " + msg
	}
	if e.Cause != nil {
		msg += "\ncaused by: " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target has the same Kind, matching errors.Is semantics
// for the common "is this a TypeError" check used by try/catch mapping.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// TypeError, RangeError, ReferenceError, SyntaxError, URIError are
// constructors for the corresponding ECMAScript error kind.
func TypeError(format string, args ...any) *Error {
	return New(KindTypeError, format, args...)
}

func RangeError(format string, args ...any) *Error {
	return New(KindRangeError, format, args...)
}

func ReferenceError(format string, args ...any) *Error {
	return New(KindReferenceError, format, args...)
}

func SyntaxError(format string, args ...any) *Error {
	return New(KindSyntaxError, format, args...)
}

func URIError(format string, args ...any) *Error {
	return New(KindURIError, format, args...)
}

// Fatal wraps a non-catchable host error (corrupt bytecode, stack-growth
// OOM) — these are never delivered to script catch clauses.
type Fatal struct {
	Message string
	Cause   error
}

func NewFatal(cause error, format string, args ...any) *Fatal {
	return &Fatal{Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (f *Fatal) Error() string {
	if f.Cause != nil {
		return "fatal: " + f.Message + ": " + f.Cause.Error()
	}
	return "fatal: " + f.Message
}

func (f *Fatal) Unwrap() error { return f.Cause }
