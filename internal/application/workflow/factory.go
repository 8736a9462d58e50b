package workflow

import (
	domainwf "github.com/G1r1shCodes/BimaBot/internal/domain/workflow"
)

// BuildSessionStateMachine returns a machine for the audit session lifecycle.
// documentsReady guards the complete trigger.
//
//	created --complete[documentsReady]--> processing
//	processing --succeed--> completed
//	processing --fail--> failed
func BuildSessionStateMachine(initialState domainwf.State, documentsReady domainwf.GuardFunc) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StateCreated).
		PermitIf(domainwf.TriggerComplete, domainwf.StateProcessing, documentsReady)

	builder.Configure(domainwf.StateProcessing).
		Permit(domainwf.TriggerSucceed, domainwf.StateCompleted).
		Permit(domainwf.TriggerFail, domainwf.StateFailed)

	// completed and failed have no outgoing edges

	return builder.Build(initialState)
}
