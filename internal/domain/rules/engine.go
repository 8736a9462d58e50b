// Package rules evaluates a structured bill against policy terms and IRDAI
// guidelines and produces an ordered list of compliance flags.
//
// Evaluation is pure: the same bill and policy always yield the same flags in
// the same order. Eligibility flags come first, then at most one charge flag per
// line item in bill order, then informational flags.
package rules

import (
	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

// DefaultTotalTolerance is the rupee difference allowed between a bill's stated
// and computed totals before an informational flag is raised
const DefaultTotalTolerance = 1.0

// Regulatory references cited by charge rules
const (
	RefNonPayableItems = "IRDAI/HLT/REG/CIR/003/01/2013"
	RefRoomRentCap     = "IRDAI/HLT/MISC/039/03/2020"
)

// Engine evaluates rules with a fixed configuration
type Engine struct {
	totalTolerance float64
}

// Option configures an Engine
type Option func(*Engine)

// WithTotalTolerance sets the allowed stated-versus-computed total difference
func WithTotalTolerance(tolerance float64) Option {
	return func(e *Engine) {
		if tolerance >= 0 {
			e.totalTolerance = tolerance
		}
	}
}

// New creates an Engine
func New(opts ...Option) *Engine {
	e := &Engine{totalTolerance: DefaultTotalTolerance}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the default engine
func Evaluate(bill *entity.Bill, policy *entity.PolicyTerms) ([]entity.Flag, error) {
	return New().Evaluate(bill, policy)
}

// Evaluate validates the input and runs eligibility, charge and informational
// rules in that order. Malformed input returns *entity.ValidationError.
func (e *Engine) Evaluate(bill *entity.Bill, policy *entity.PolicyTerms) ([]entity.Flag, error) {
	if err := Validate(bill, policy); err != nil {
		return nil, err
	}

	ev := newEvaluation(bill, policy, e.totalTolerance)

	flags := make([]entity.Flag, 0)
	for _, rule := range eligibilityRules {
		if f, ok := rule.check(ev); ok {
			flags = append(flags, f)
		}
	}
	for _, item := range bill.LineItems {
		if f, ok := ev.chargeFlag(item); ok {
			flags = append(flags, f)
		}
	}
	for _, rule := range informationalRules {
		flags = append(flags, rule.check(ev)...)
	}

	return flags, nil
}

// evaluation carries per-call state; it is never shared between calls
type evaluation struct {
	bill      *entity.Bill
	policy    *entity.PolicyTerms
	tolerance float64

	// running billed totals per category, in paise, for sub-limit checks
	running map[entity.Category]int64
}

func newEvaluation(bill *entity.Bill, policy *entity.PolicyTerms, tolerance float64) *evaluation {
	return &evaluation{
		bill:      bill,
		policy:    policy,
		tolerance: tolerance,
		running:   make(map[entity.Category]int64),
	}
}

// chargeFlag applies every charge rule to item and keeps the most severe match.
// Rules are visited in table order, so a later rule replaces an earlier one only
// when it is strictly more severe.
func (ev *evaluation) chargeFlag(item entity.LineItem) (entity.Flag, bool) {
	var (
		best  entity.Flag
		found bool
	)
	for _, rule := range chargeRules {
		if rule.category != "" && rule.category != item.Category {
			continue
		}
		m, ok := rule.condition(ev, item)
		if !ok {
			continue
		}
		f := rule.flag(item, m)
		if !found || f.Severity.Rank() > best.Severity.Rank() {
			best, found = f, true
		}
	}
	return best, found
}
