package model

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure the way callers need to branch on it,
// independent of the Go type carrying it.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindAlreadyExists Kind = "already_exists"
	KindValidation    Kind = "validation"
	KindCycle         Kind = "cycle"
	KindResource      Kind = "resource"
	KindParsing       Kind = "parsing"
	KindSystem        Kind = "system"
	KindCancelled     Kind = "cancelled"
	KindTimeout       Kind = "timeout"
)

// Error is the typed error every engine returns for an expected
// failure mode; it wraps an optional underlying cause and carries a
// stable Kind for callers and the top-level request handler to branch
// on without parsing message text.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError constructs a typed Error. op is the failing operation name
// (e.g. "store.CreateTask"), msg is a human-readable summary, cause may
// be nil.
func NewError(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Err: cause}
}

// ErrorKind extracts the Kind from err, walking its Unwrap chain; it
// returns KindSystem for an err with no *Error in its chain, so callers
// never have to nil-check before branching.
func ErrorKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return ""
	}
	return KindSystem
}

// IsKind reports whether err's chain contains an *Error of kind k.
func IsKind(err error, k Kind) bool {
	return ErrorKind(err) == k
}
