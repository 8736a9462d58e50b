package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when no edge exists for a trigger
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned for unknown state values
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when every guarded edge for a trigger rejects
	ErrGuardFailed = errors.New("guard condition failed")
)
