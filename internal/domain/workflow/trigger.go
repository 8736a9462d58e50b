package workflow

// Trigger is an event that moves a session between states
type Trigger string

const (
	// TriggerComplete closes document intake and starts processing
	TriggerComplete Trigger = "complete"
	// TriggerSucceed records a finished audit
	TriggerSucceed Trigger = "succeed"
	// TriggerFail records an aborted audit
	TriggerFail Trigger = "fail"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
