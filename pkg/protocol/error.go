package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrNilMessage         = errors.New("protocol: nil message")
	ErrSessionMismatch    = errors.New("protocol: message belongs to another session")
	ErrMissingSession     = errors.New("protocol: missing session identifier")
	ErrMissingBlindFactor = errors.New("protocol: disclosure has no blinding factor")
	ErrNoAuditStore       = errors.New("protocol: no audit store configured")
)

// Error is a custom error for sessions which records the state the session was in
// when the failure occurred.
type Error struct {
	// State in which the error occurred
	State State
	// Session is empty if the session had no identifier yet
	Session string
	// Err is the underlying error
	Err error
}

func (e Error) Error() string {
	if e.Session == "" {
		return fmt.Sprintf("protocol: %s: %s", e.State, e.Err)
	}
	return fmt.Sprintf("protocol: %s: session %s: %s", e.State, e.Session, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}
