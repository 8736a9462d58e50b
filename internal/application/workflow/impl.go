package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/G1r1shCodes/BimaBot/internal/application/dispatcher"
	"github.com/G1r1shCodes/BimaBot/internal/application/port"
	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
	"github.com/G1r1shCodes/BimaBot/internal/domain/event"
	domainwf "github.com/G1r1shCodes/BimaBot/internal/domain/workflow"
)

type engineImpl struct {
	sessionRepo port.SessionRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// NewEngine creates a new session workflow engine
func NewEngine(
	sessionRepo port.SessionRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) SessionWorkflow {
	e := &engineImpl{
		sessionRepo: sessionRepo,
		txManager:   txManager,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) load(ctx context.Context, sessionID string) (*entity.AuditSession, domainwf.State, error) {
	session, err := e.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch session: %w", err)
	}
	if session == nil {
		return nil, "", entity.ErrSessionNotFound
	}
	state, err := domainwf.ParseState(session.Status)
	if err != nil {
		return nil, "", fmt.Errorf("session %s has status %q: %w", sessionID, session.Status, err)
	}
	return session, state, nil
}

func (e *engineImpl) Transition(ctx context.Context, sessionID string, trigger domainwf.Trigger, within TxFunc) (domainwf.State, error) {
	var from, to domainwf.State

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		session, state, err := e.load(txCtx, sessionID)
		if err != nil {
			return err
		}
		from = state

		machine := BuildSessionStateMachine(state, func(context.Context) bool {
			return session.DocumentsReady()
		})
		if err := machine.Fire(txCtx, trigger); err != nil {
			if errors.Is(err, domainwf.ErrGuardFailed) {
				return &entity.PreconditionError{Reason: missingDocuments(session)}
			}
			return err
		}
		to = machine.State()

		if err := e.sessionRepo.UpdateStatus(txCtx, sessionID, from.String(), to.String()); err != nil {
			return fmt.Errorf("failed to update session status: %w", err)
		}
		if within != nil {
			return within(txCtx)
		}
		return nil
	})
	if err != nil {
		return from, err
	}

	e.publish(ctx, sessionID, trigger, from, to)
	return to, nil
}

func (e *engineImpl) CurrentState(ctx context.Context, sessionID string) (domainwf.State, error) {
	_, state, err := e.load(ctx, sessionID)
	return state, err
}

func (e *engineImpl) publish(ctx context.Context, sessionID string, trigger domainwf.Trigger, from, to domainwf.State) {
	if e.dispatcher == nil {
		return
	}

	e.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeStatusChanged, sessionID, map[string]interface{}{
		event.KeyFromStatus: from.String(),
		event.KeyToStatus:   to.String(),
		"trigger":           trigger.String(),
	}))

	switch to {
	case domainwf.StateCompleted:
		e.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeSessionCompleted, sessionID, nil))
	case domainwf.StateFailed:
		e.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeSessionFailed, sessionID, nil))
	}
}

func missingDocuments(s *entity.AuditSession) string {
	switch {
	case !s.BillUploaded() && !s.PolicyUploaded():
		return "bill and policy documents must be uploaded before completion"
	case !s.BillUploaded():
		return "bill document must be uploaded before completion"
	default:
		return "policy document must be uploaded before completion"
	}
}
