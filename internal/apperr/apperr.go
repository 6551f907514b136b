// Package apperr defines the error kinds surfaced by the assessment pipeline.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-checkable error category.
type Kind string

const (
	KindProvider       Kind = "provider"
	KindExtraction     Kind = "extraction"
	KindNotFound       Kind = "not_found"
	KindGeneration     Kind = "generation"
	KindEvaluation     Kind = "evaluation"
	KindInvalidRequest Kind = "invalid_request"
	KindInternal       Kind = "internal"
)

// Error carries a Kind, a short human-readable message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind) + " error"
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors of the same kind, so errors.Is(err, ErrNotFound) holds for
// any not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// ErrNotFound is the sentinel for missing documents.
var ErrNotFound = &Error{Kind: KindNotFound}

func New(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Provider(msg string, err error) *Error   { return New(KindProvider, msg, err) }
func Extraction(msg string, err error) *Error { return New(KindExtraction, msg, err) }
func Generation(msg string, err error) *Error { return New(KindGeneration, msg, err) }
func Evaluation(msg string, err error) *Error { return New(KindEvaluation, msg, err) }
func Invalid(msg string, err error) *Error    { return New(KindInvalidRequest, msg, err) }

// NotFound reports a missing document in the named collection.
func NotFound(collection, id string) *Error {
	return New(KindNotFound, fmt.Sprintf("%s %q not found", collection, id), nil)
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindInternal if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the message of the outermost *Error in err's chain, falling
// back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
