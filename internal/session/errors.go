package session

import (
	"errors"
	"fmt"
)

// ErrTokenMissing means a handshake response did not carry the anti-csrf
// token. The session's cookies are not trusted after this and the session
// is destroyed rather than recycled.
var ErrTokenMissing = errors.New("anti-csrf token not found")

// ErrPoolTimeout means no pooled session became available within the
// acquire window.
var ErrPoolTimeout = errors.New("no pooled session became available")

// TransportError is a request that never produced a usable body: either a
// connection fault or a non-200 status.
type TransportError struct {
	Shape  string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s request failed: %v", e.Shape, e.Err)
	}
	return fmt.Sprintf("%s request returned status %d", e.Shape, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StateError is an operation applied to a session in the wrong lifecycle
// state, e.g. fetching on a session nobody acquired.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s on session in state %s", e.Op, e.State)
}
