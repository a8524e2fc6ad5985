// Package rensenerr defines the failure taxonomy shared by every rensen
// component. Each Kind corresponds to one failure class a component can
// raise; callers that need to react to a specific class use errors.As
// against *Error and switch on Kind.
package rensenerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers and the log sink can report it
// without parsing the message string.
type Kind string

const (
	Connect      Kind = "Connect"
	Session      Kind = "Session"
	Handshake    Kind = "Handshake"
	Auth         Kind = "Auth"
	Channel      Kind = "Channel"
	Copy         Kind = "Copy"
	Metadata     Kind = "Metadata"
	FS           Kind = "FS"
	Serialize    Kind = "Serialize"
	Deserialize  Kind = "Deserialize"
	Config       Kind = "Config"
	Missing      Kind = "Missing"
	InvalidInput Kind = "InvalidInput"
	ReadInput    Kind = "ReadInput"
	Scheduler    Kind = "Scheduler"
	STD          Kind = "STD"
)

// Error pairs a Kind with a human-readable message and, where available,
// the underlying error that triggered it.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind from a format string, in the
// style of fmt.Errorf. A trailing %w verb is preserved so errors.Is/As
// still see the wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Msg: err.Error(), Err: errors.Unwrap(err)}
}

// Wrap attaches a Kind to an existing error without losing it.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
