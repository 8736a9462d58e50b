package workflow

import (
	"context"
	"fmt"
)

// GuardFunc decides whether a guarded edge may be taken
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder collects edges and stamps out machines
type StateMachineBuilder interface {
	// Configure returns the edge configuration for a source state
	Configure(state State) StateConfiguration

	// Build returns an independent machine positioned at initialState
	Build(initialState State) StateMachine
}

// StateConfiguration adds outgoing edges to one source state
type StateConfiguration interface {
	// Permit adds an unguarded edge
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf adds an edge taken only when guard returns true
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type edge struct {
	to    State
	guard GuardFunc
}

// edgeTable maps source state and trigger to candidate edges, in declaration order
type edgeTable map[State]map[Trigger][]edge

func (t edgeTable) clone() edgeTable {
	out := make(edgeTable, len(t))
	for from, byTrigger := range t {
		copied := make(map[Trigger][]edge, len(byTrigger))
		for trigger, edges := range byTrigger {
			copied[trigger] = append([]edge(nil), edges...)
		}
		out[from] = copied
	}
	return out
}

type stateMachineBuilder struct {
	edges edgeTable
}

type stateConfig struct {
	from  State
	edges edgeTable
}

// NewBuilder returns an empty builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{edges: make(edgeTable)}
}

func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	if _, ok := b.edges[state]; !ok {
		b.edges[state] = make(map[Trigger][]edge)
	}
	return &stateConfig{from: state, edges: b.edges}
}

func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}
	return &stateMachine{current: initialState, edges: b.edges.clone()}
}

func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	c.edges[c.from][trigger] = append(c.edges[c.from][trigger], edge{to: toState, guard: guard})
	return c
}
