package entity

import "time"

// CategoryTerm ties a bill category to the policy clause that governs it
type CategoryTerm struct {
	Category  Category `json:"category"`
	Reference string   `json:"reference,omitempty"`
}

// SubLimit caps the total payable for a category, either as an absolute
// amount or as a percentage of the sum insured.
type SubLimit struct {
	Category        Category `json:"category"`
	LimitAmount     float64  `json:"limit_amount,omitempty"`
	LimitPercentage float64  `json:"limit_percentage,omitempty"`
	Reference       string   `json:"reference,omitempty"`
}

// Limit resolves the sub-limit to an amount. Returns 0 when neither form is set.
func (s SubLimit) Limit(sumInsured float64) float64 {
	if s.LimitAmount > 0 {
		return s.LimitAmount
	}
	if s.LimitPercentage > 0 && sumInsured > 0 {
		return sumInsured * s.LimitPercentage / 100
	}
	return 0
}

// PolicyTerms is the structured view of an insurance policy document
type PolicyTerms struct {
	PolicyID               string         `json:"policy_id"`
	HolderName             string         `json:"holder_name"`
	InsurerName            string         `json:"insurer_name"`
	InsurerAddress         string         `json:"insurer_address,omitempty"`
	SumInsured             float64        `json:"sum_insured"`
	InceptionDate          *time.Time     `json:"inception_date,omitempty"`
	RoomRentPerDay         float64        `json:"room_rent_per_day,omitempty"`
	WaitingPeriodMonths    int            `json:"waiting_period_months,omitempty"`
	PEDClause              bool           `json:"ped_clause"`
	PEDWaitingPeriodMonths int            `json:"ped_waiting_period_months,omitempty"`
	PEDList                []string       `json:"ped_list,omitempty"`
	ExcludedCategories     []CategoryTerm `json:"excluded_categories,omitempty"`
	CoveredProcedures      []string       `json:"covered_procedures,omitempty"`
	SubLimits              []SubLimit     `json:"sub_limits,omitempty"`
	CopayPercentage        float64        `json:"copay_percentage,omitempty"`
}

// Exclusion returns the exclusion term for a category, if the policy lists one
func (p *PolicyTerms) Exclusion(category Category) (CategoryTerm, bool) {
	for _, term := range p.ExcludedCategories {
		if term.Category == category {
			return term, true
		}
	}
	return CategoryTerm{}, false
}

// SubLimitFor returns the sub-limit for a category, if any
func (p *PolicyTerms) SubLimitFor(category Category) (SubLimit, bool) {
	for _, sl := range p.SubLimits {
		if sl.Category == category {
			return sl, true
		}
	}
	return SubLimit{}, false
}

// Clone returns a deep copy of the policy terms
func (p *PolicyTerms) Clone() *PolicyTerms {
	if p == nil {
		return nil
	}
	c := *p
	c.InceptionDate = cloneTime(p.InceptionDate)
	c.PEDList = append([]string(nil), p.PEDList...)
	c.ExcludedCategories = append([]CategoryTerm(nil), p.ExcludedCategories...)
	c.CoveredProcedures = append([]string(nil), p.CoveredProcedures...)
	c.SubLimits = append([]SubLimit(nil), p.SubLimits...)
	return &c
}
