package entity

// FlagType identifies the kind of compliance finding
type FlagType string

const (
	FlagConsumables         FlagType = "consumables"
	FlagRoomRentExcess      FlagType = "room_rent_excess"
	FlagNonMedical          FlagType = "non_medical"
	FlagPreExisting         FlagType = "pre_existing"
	FlagWaitingPeriod       FlagType = "waiting_period"
	FlagUncoveredProcedure  FlagType = "uncovered_procedure"
	FlagPolicyLimitExceeded FlagType = "policy_limit_exceeded"
	FlagRegistrationFee     FlagType = "registration_fee"
	FlagMisc                FlagType = "misc"
)

// Severity is the impact level of a finding
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

var severityRank = map[Severity]int{
	SeverityInfo:    1,
	SeverityWarning: 2,
	SeverityError:   3,
}

// Rank orders severities; higher is more severe. Unknown severities rank 0.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Scope says what a finding applies to
type Scope string

const (
	ScopeEligibility   Scope = "eligibility"
	ScopeCharge        Scope = "charge"
	ScopeInformational Scope = "informational"
)

// Flag is a single compliance finding produced by the rule engine.
//
// Eligibility flags never reference a line item. Charge flags always reference
// exactly one line item and carry an affected amount.
type Flag struct {
	Type                FlagType `json:"flag_type"`
	Severity            Severity `json:"severity"`
	Scope               Scope    `json:"scope"`
	LineItemID          string   `json:"line_item_id,omitempty"`
	AmountAffected      *float64 `json:"amount_affected,omitempty"`
	Reason              string   `json:"reason"`
	PolicyClause        string   `json:"policy_clause,omitempty"`
	RegulatoryReference string   `json:"regulatory_reference,omitempty"`
}

// Amount returns the affected amount, or 0 when none is set
func (f Flag) Amount() float64 {
	if f.AmountAffected == nil {
		return 0
	}
	return *f.AmountAffected
}

// IsBlocking reports whether the flag blocks the whole claim
func (f Flag) IsBlocking() bool {
	return f.Scope == ScopeEligibility && f.Severity == SeverityError
}

// AmountPtr returns a pointer to a copy of v
func AmountPtr(v float64) *float64 {
	return &v
}

// CloneFlags returns a deep copy of a flag slice
func CloneFlags(flags []Flag) []Flag {
	if flags == nil {
		return nil
	}
	out := make([]Flag, len(flags))
	for i, f := range flags {
		out[i] = f
		if f.AmountAffected != nil {
			out[i].AmountAffected = AmountPtr(*f.AmountAffected)
		}
	}
	return out
}
