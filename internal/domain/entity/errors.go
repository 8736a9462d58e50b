package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when no audit session exists for an id
	ErrSessionNotFound = errors.New("audit session not found")

	// ErrNoData is returned when a document yields no extractable text
	ErrNoData = errors.New("no data found in document")

	// ErrStatusConflict is returned when a conditional status update finds the
	// session in a different state than expected
	ErrStatusConflict = errors.New("session status changed concurrently")
)

// ValidationError reports malformed engine input. Field names the offending
// input using a path such as "line_items[2].amount".
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PreconditionError is returned when an action is requested before the
// session is ready for it. The session is left unchanged.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

// CollaboratorError wraps a failure from an external extraction or inference
// service. Transient errors may be retried; permanent ones may not.
type CollaboratorError struct {
	Collaborator string
	Op           string
	Transient    bool
	Err          error
}

func (e *CollaboratorError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s %s failed (%s): %v", e.Collaborator, e.Op, kind, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// AggregationError is an internal invariant violation in the financial summary.
// It is never retried.
type AggregationError struct {
	Reason string
}

func (e *AggregationError) Error() string {
	return "aggregation invariant violated: " + e.Reason
}

// IsTransient reports whether err is a collaborator error worth retrying
func IsTransient(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce) && ce.Transient
}
