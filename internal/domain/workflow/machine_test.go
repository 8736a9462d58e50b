package workflow

import (
	"context"
	"errors"
	"testing"
)

type readyKey struct{}

func sessionBuilder() StateMachineBuilder {
	builder := NewBuilder()
	builder.Configure(StateCreated).
		PermitIf(TriggerComplete, StateProcessing, func(ctx context.Context) bool {
			ready, _ := ctx.Value(readyKey{}).(bool)
			return ready
		})
	builder.Configure(StateProcessing).
		Permit(TriggerSucceed, StateCompleted).
		Permit(TriggerFail, StateFailed)
	return builder
}

func readyCtx(ready bool) context.Context {
	return context.WithValue(context.Background(), readyKey{}, ready)
}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateCreated, false},
		{StateProcessing, false},
		{StateCompleted, true},
		{StateFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseState(t *testing.T) {
	if s, err := ParseState("processing"); err != nil || s != StateProcessing {
		t.Errorf("ParseState(processing) = %v, %v", s, err)
	}
	if _, err := ParseState("PROCESSING"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("ParseState(PROCESSING) error = %v, want %v", err, ErrInvalidState)
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	NewBuilder().Configure(State("archived"))
}

func TestBuilder_BuildPanicsOnInvalidInitialState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial state")
		}
	}()

	NewBuilder().Build(State(""))
}

func TestStateConfiguration_PermitPanicsOnInvalidTarget(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic on invalid target state")
		}
	}()

	NewBuilder().Configure(StateCreated).Permit(TriggerComplete, State("queued"))
}

func TestStateMachine_HappyPath(t *testing.T) {
	machine := sessionBuilder().Build(StateCreated)

	if err := machine.Fire(readyCtx(true), TriggerComplete); err != nil {
		t.Fatalf("Fire(complete) failed: %v", err)
	}
	if machine.State() != StateProcessing {
		t.Fatalf("State = %v, want %v", machine.State(), StateProcessing)
	}
	if err := machine.Fire(context.Background(), TriggerSucceed); err != nil {
		t.Fatalf("Fire(succeed) failed: %v", err)
	}
	if machine.State() != StateCompleted {
		t.Errorf("State = %v, want %v", machine.State(), StateCompleted)
	}
	if len(machine.PermittedTriggers()) != 0 {
		t.Errorf("terminal state should permit nothing, got %v", machine.PermittedTriggers())
	}
}

func TestStateMachine_GuardFailureKeepsState(t *testing.T) {
	machine := sessionBuilder().Build(StateCreated)

	err := machine.Fire(readyCtx(false), TriggerComplete)
	if !errors.Is(err, ErrGuardFailed) {
		t.Fatalf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}
	if machine.State() != StateCreated {
		t.Errorf("State = %v, want %v", machine.State(), StateCreated)
	}
}

func TestStateMachine_OnlyDeclaredEdges(t *testing.T) {
	tests := []struct {
		from    State
		trigger Trigger
		allowed bool
	}{
		{StateCreated, TriggerComplete, true},
		{StateCreated, TriggerSucceed, false},
		{StateCreated, TriggerFail, false},
		{StateProcessing, TriggerComplete, false},
		{StateProcessing, TriggerSucceed, true},
		{StateProcessing, TriggerFail, true},
		{StateCompleted, TriggerFail, false},
		{StateCompleted, TriggerComplete, false},
		{StateFailed, TriggerSucceed, false},
		{StateFailed, TriggerComplete, false},
	}

	builder := sessionBuilder()
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.trigger), func(t *testing.T) {
			machine := builder.Build(tt.from)
			if got := machine.CanFire(tt.trigger); got != tt.allowed {
				t.Errorf("CanFire() = %v, want %v", got, tt.allowed)
			}
			err := machine.Fire(readyCtx(true), tt.trigger)
			if tt.allowed && err != nil {
				t.Errorf("Fire() failed: %v", err)
			}
			if !tt.allowed {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
				}
				if machine.State() != tt.from {
					t.Errorf("State = %v, want %v", machine.State(), tt.from)
				}
			}
		})
	}
}

func TestStateMachine_PermittedTriggersSorted(t *testing.T) {
	machine := sessionBuilder().Build(StateProcessing)

	got := machine.PermittedTriggers()
	if len(got) != 2 || got[0] != TriggerFail || got[1] != TriggerSucceed {
		t.Errorf("PermittedTriggers() = %v, want [fail succeed]", got)
	}
}

func TestStateMachine_Immutability(t *testing.T) {
	builder := sessionBuilder()
	machine1 := builder.Build(StateProcessing)
	machine2 := builder.Build(StateProcessing)

	if err := machine1.Fire(context.Background(), TriggerFail); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if machine2.State() != StateProcessing {
		t.Errorf("machine2 state = %v, want %v", machine2.State(), StateProcessing)
	}

	// edges added after Build do not leak into existing machines
	builder.Configure(StateFailed).Permit(TriggerComplete, StateProcessing)
	if machine1.CanFire(TriggerComplete) {
		t.Error("machine built earlier should not see later edges")
	}
}
