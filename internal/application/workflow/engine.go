package workflow

import (
	"context"

	domainwf "github.com/G1r1shCodes/BimaBot/internal/domain/workflow"
)

// TxFunc runs inside the transition's transaction, after the status update
type TxFunc func(txCtx context.Context) error

// SessionWorkflow drives audit sessions through their lifecycle
type SessionWorkflow interface {
	// Transition fires trigger for a session and persists the new status. When
	// within is non-nil it runs in the same transaction, so its writes commit or
	// roll back together with the status change. Returns the resulting state.
	Transition(ctx context.Context, sessionID string, trigger domainwf.Trigger, within TxFunc) (domainwf.State, error)

	// CurrentState returns the persisted state of a session
	CurrentState(ctx context.Context, sessionID string) (domainwf.State, error)
}
