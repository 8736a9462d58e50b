package service

import (
	"errors"
	"fmt"
)

var (
	// ErrResultNotReady is returned when a result is requested before the
	// session reaches a terminal state
	ErrResultNotReady = errors.New("audit result not ready")

	// ErrCapacityExceeded rejects a completion when every worker and queue slot
	// is taken. The session stays created and the caller may retry.
	ErrCapacityExceeded = errors.New("audit capacity exceeded, retry later")

	// ErrSessionBusy is returned when a document is attached while the session
	// is being processed
	ErrSessionBusy = errors.New("audit session is busy")

	// errNoLineItems marks a bill the structurer could not itemise
	errNoLineItems = errors.New("no line items found in bill")

	errPanicked = errors.New("collaborator panicked")
)

// SessionFailedError is returned by Result for failed sessions
type SessionFailedError struct {
	Kind   string
	Reason string
}

func (e *SessionFailedError) Error() string {
	return fmt.Sprintf("audit failed (%s): %s", e.Kind, e.Reason)
}
