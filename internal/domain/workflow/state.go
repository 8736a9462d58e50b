package workflow

// State is a stage in the audit session lifecycle
type State string

const (
	StateCreated    State = "created"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

var validStates = map[State]bool{
	StateCreated:    true,
	StateProcessing: true,
	StateCompleted:  true,
	StateFailed:     true,
}

var terminalStates = map[State]bool{
	StateCompleted: true,
	StateFailed:    true,
}

// IsTerminal returns true if no further transitions leave this state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known session state
func (s State) IsValid() bool {
	return validStates[s]
}

// ParseState converts a persisted status string into a State
func ParseState(s string) (State, error) {
	state := State(s)
	if !state.IsValid() {
		return "", ErrInvalidState
	}
	return state, nil
}
