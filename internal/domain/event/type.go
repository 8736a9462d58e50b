package event

// Type identifies the type of domain event
type Type string

const (
	TypeSessionCreated   Type = "session.created"
	TypeDocumentAttached Type = "session.document_attached"
	TypeStatusChanged    Type = "session.status_changed"
	TypeSessionCompleted Type = "session.completed"
	TypeSessionFailed    Type = "session.failed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeSessionCreated,
		TypeDocumentAttached,
		TypeStatusChanged,
		TypeSessionCompleted,
		TypeSessionFailed:
		return true
	default:
		return false
	}
}
