package workflow

import (
	"context"
	"fmt"
	"sort"
)

// StateMachine tracks one session's current state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire reports whether any edge exists for trigger. Guards are not evaluated.
	CanFire(trigger Trigger) bool

	// Fire takes the first edge whose guard passes
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers lists triggers with at least one edge, sorted by name
	PermittedTriggers() []Trigger
}

type stateMachine struct {
	current State
	edges   edgeTable
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) CanFire(trigger Trigger) bool {
	return len(m.edges[m.current][trigger]) > 0
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	candidates := m.edges[m.current][trigger]
	if len(candidates) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, e := range candidates {
		if e.guard == nil || e.guard(ctx) {
			m.current = e.to
			return nil
		}
	}

	return fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.edges[m.current]))
	for trigger, edges := range m.edges[m.current] {
		if len(edges) > 0 {
			triggers = append(triggers, trigger)
		}
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
