package entity

import "time"

// Status constants for AuditSession
const (
	StatusCreated    = "created"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Progress step constants, in pipeline order
const (
	StepExtracting  = "extracting"
	StepStructuring = "structuring"
	StepAuditing    = "auditing"
	StepReporting   = "reporting"
)

// ProgressSteps lists pipeline steps in execution order
var ProgressSteps = []string{StepExtracting, StepStructuring, StepAuditing, StepReporting}

// Failure kind constants recorded on failed sessions
const (
	FailureValidation   = "validation"
	FailureCollaborator = "collaborator"
	FailureNoData       = "no_data"
	FailureExtraction   = "extraction"
	FailureInternal     = "internal"
)

// DocumentKind identifies which of the two session documents is meant
type DocumentKind string

const (
	DocumentBill   DocumentKind = "bill"
	DocumentPolicy DocumentKind = "policy"
)

// IsValid returns true for bill and policy
func (k DocumentKind) IsValid() bool {
	return k == DocumentBill || k == DocumentPolicy
}

// DocumentRef points at a stored upload
type DocumentRef struct {
	Path       string    `json:"path"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Progress is a coarse, non-blocking progress indicator for pollers
type Progress struct {
	Step    string `json:"step,omitempty"`
	Message string `json:"message,omitempty"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// Failure records why a session ended in the failed state
type Failure struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// FinancialSummary holds the amounts derived from a bill and its flags
type FinancialSummary struct {
	TotalBilled        float64 `json:"total_billed"`
	AmountUnderReview  float64 `json:"amount_under_review"`
	FullyCoveredAmount float64 `json:"fully_covered_amount"`
	EligibilityBlocked bool    `json:"eligibility_blocked"`
}

// AuditSession is one end-to-end audit request from document intake to result
type AuditSession struct {
	ID             string            `json:"audit_id"`
	Status         string            `json:"status"`
	BillDocument   *DocumentRef      `json:"bill_document,omitempty"`
	PolicyDocument *DocumentRef      `json:"policy_document,omitempty"`
	Bill           *Bill             `json:"bill,omitempty"`
	Policy         *PolicyTerms      `json:"policy,omitempty"`
	Flags          []Flag            `json:"flags"`
	Summary        *FinancialSummary `json:"summary,omitempty"`
	DisputeLetter  string            `json:"dispute_letter,omitempty"`
	Progress       Progress          `json:"progress"`
	Failure        *Failure          `json:"failure,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

// BillUploaded reports whether a bill document is attached
func (s *AuditSession) BillUploaded() bool {
	return s.BillDocument != nil
}

// PolicyUploaded reports whether a policy document is attached
func (s *AuditSession) PolicyUploaded() bool {
	return s.PolicyDocument != nil
}

// DocumentsReady reports whether both documents are attached
func (s *AuditSession) DocumentsReady() bool {
	return s.BillUploaded() && s.PolicyUploaded()
}

// IsTerminal reports whether the session has completed or failed
func (s *AuditSession) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// Document returns the reference for the given kind
func (s *AuditSession) Document(kind DocumentKind) *DocumentRef {
	if kind == DocumentBill {
		return s.BillDocument
	}
	return s.PolicyDocument
}

// Clone returns a deep copy so callers never share mutable state with a store
func (s *AuditSession) Clone() *AuditSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.BillDocument != nil {
		doc := *s.BillDocument
		c.BillDocument = &doc
	}
	if s.PolicyDocument != nil {
		doc := *s.PolicyDocument
		c.PolicyDocument = &doc
	}
	c.Bill = s.Bill.Clone()
	c.Policy = s.Policy.Clone()
	c.Flags = CloneFlags(s.Flags)
	if s.Summary != nil {
		summary := *s.Summary
		c.Summary = &summary
	}
	if s.Failure != nil {
		failure := *s.Failure
		c.Failure = &failure
	}
	c.CompletedAt = cloneTime(s.CompletedAt)
	return &c
}
