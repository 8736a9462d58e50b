package rules

import (
	"fmt"
	"math"

	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

func invalid(field, format string, args ...interface{}) error {
	return &entity.ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func badNumber(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// Validate checks that bill and policy are well-formed enough to evaluate.
// The first problem found is returned as *entity.ValidationError.
func Validate(bill *entity.Bill, policy *entity.PolicyTerms) error {
	if bill == nil {
		return invalid("bill", "is required")
	}
	if policy == nil {
		return invalid("policy", "is required")
	}
	if err := validateBill(bill); err != nil {
		return err
	}
	return validatePolicy(policy)
}

func validateBill(bill *entity.Bill) error {
	seen := make(map[string]int, len(bill.LineItems))
	for i, item := range bill.LineItems {
		field := fmt.Sprintf("line_items[%d]", i)
		if item.ID == "" {
			return invalid(field+".id", "must not be empty")
		}
		if prev, dup := seen[item.ID]; dup {
			return invalid(field+".id", "duplicates line_items[%d] (%s)", prev, item.ID)
		}
		seen[item.ID] = i
		if badNumber(item.Amount) || item.Amount < 0 {
			return invalid(field+".amount", "must be a non-negative number, got %v", item.Amount)
		}
		if !item.Category.IsValid() {
			return invalid(field+".category", "unknown category %q", item.Category)
		}
		if item.Units < 0 {
			return invalid(field+".units", "must not be negative, got %d", item.Units)
		}
	}
	if badNumber(bill.StatedTotal) || bill.StatedTotal < 0 {
		return invalid("stated_total", "must be a non-negative number, got %v", bill.StatedTotal)
	}
	if bill.AdmissionDate != nil && bill.DischargeDate != nil && bill.DischargeDate.Before(*bill.AdmissionDate) {
		return invalid("discharge_date", "is before admission_date")
	}
	return nil
}

func validatePolicy(p *entity.PolicyTerms) error {
	if badNumber(p.SumInsured) || p.SumInsured < 0 {
		return invalid("policy.sum_insured", "must be a non-negative number, got %v", p.SumInsured)
	}
	if badNumber(p.RoomRentPerDay) || p.RoomRentPerDay < 0 {
		return invalid("policy.room_rent_per_day", "must be a non-negative number, got %v", p.RoomRentPerDay)
	}
	if p.WaitingPeriodMonths < 0 {
		return invalid("policy.waiting_period_months", "must not be negative, got %d", p.WaitingPeriodMonths)
	}
	if p.PEDWaitingPeriodMonths < 0 {
		return invalid("policy.ped_waiting_period_months", "must not be negative, got %d", p.PEDWaitingPeriodMonths)
	}
	if badNumber(p.CopayPercentage) || p.CopayPercentage < 0 || p.CopayPercentage > 100 {
		return invalid("policy.copay_percentage", "must be between 0 and 100, got %v", p.CopayPercentage)
	}
	for i, term := range p.ExcludedCategories {
		if !term.Category.IsValid() {
			return invalid(fmt.Sprintf("policy.excluded_categories[%d].category", i), "unknown category %q", term.Category)
		}
	}

	seen := make(map[entity.Category]bool, len(p.SubLimits))
	for i, sl := range p.SubLimits {
		field := fmt.Sprintf("policy.sub_limits[%d]", i)
		if !sl.Category.IsValid() {
			return invalid(field+".category", "unknown category %q", sl.Category)
		}
		if seen[sl.Category] {
			return invalid(field+".category", "duplicate sub-limit for %s", sl.Category)
		}
		seen[sl.Category] = true
		if badNumber(sl.LimitAmount) || sl.LimitAmount < 0 {
			return invalid(field+".limit_amount", "must be a non-negative number, got %v", sl.LimitAmount)
		}
		if badNumber(sl.LimitPercentage) || sl.LimitPercentage < 0 || sl.LimitPercentage > 100 {
			return invalid(field+".limit_percentage", "must be between 0 and 100, got %v", sl.LimitPercentage)
		}
	}
	return nil
}
