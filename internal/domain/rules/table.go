package rules

import (
	"fmt"

	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

// match is what a rule condition reports about one line item
type match struct {
	amount float64
	reason string
	clause string
}

// chargeRule is one row of the charge rule table: the category it applies to
// (empty for any), the condition over policy and item, and the flag template.
type chargeRule struct {
	name       string
	category   entity.Category
	flagType   entity.FlagType // empty means derive from the item's category
	severity   entity.Severity
	regulatory string
	condition  func(ev *evaluation, item entity.LineItem) (match, bool)
}

func (r chargeRule) flag(item entity.LineItem, m match) entity.Flag {
	flagType := r.flagType
	if flagType == "" {
		flagType = flagTypeForCategory(item.Category)
	}
	return entity.Flag{
		Type:                flagType,
		Severity:            r.severity,
		Scope:               entity.ScopeCharge,
		LineItemID:          item.ID,
		AmountAffected:      entity.AmountPtr(m.amount),
		Reason:              m.reason,
		PolicyClause:        m.clause,
		RegulatoryReference: r.regulatory,
	}
}

// chargeRules is evaluated top to bottom for every line item
var chargeRules = []chargeRule{
	{
		name:       "disallowed_consumables",
		category:   entity.CategoryConsumables,
		flagType:   entity.FlagConsumables,
		severity:   entity.SeverityWarning,
		regulatory: RefNonPayableItems,
		condition:  nonPayable("consumables are on the IRDAI list of non-payable items"),
	},
	{
		name:       "disallowed_registration_fee",
		category:   entity.CategoryRegistrationFee,
		flagType:   entity.FlagRegistrationFee,
		severity:   entity.SeverityWarning,
		regulatory: RefNonPayableItems,
		condition:  nonPayable("registration and admission fees are on the IRDAI list of non-payable items"),
	},
	{
		name:       "disallowed_service_charge",
		category:   entity.CategoryServiceCharge,
		flagType:   entity.FlagNonMedical,
		severity:   entity.SeverityWarning,
		regulatory: RefNonPayableItems,
		condition:  nonPayable("service charges are non-medical expenses on the IRDAI list of non-payable items"),
	},
	{
		name:       "room_rent_cap",
		category:   entity.CategoryRoomRent,
		flagType:   entity.FlagRoomRentExcess,
		severity:   entity.SeverityWarning,
		regulatory: RefRoomRentCap,
		condition:  roomRentOverCap,
	},
	{
		name:      "policy_exclusion",
		severity:  entity.SeverityError,
		condition: policyExcluded,
	},
	{
		name:      "sub_limit",
		flagType:  entity.FlagPolicyLimitExceeded,
		severity:  entity.SeverityWarning,
		condition: subLimitExceeded,
	},
}

func nonPayable(reason string) func(*evaluation, entity.LineItem) (match, bool) {
	return func(_ *evaluation, item entity.LineItem) (match, bool) {
		if item.Amount <= 0 {
			return match{}, false
		}
		return match{
			amount: item.Amount,
			reason: fmt.Sprintf("%q: %s", item.Label, reason),
		}, true
	}
}

func roomRentOverCap(ev *evaluation, item entity.LineItem) (match, bool) {
	capPerDay := ev.policy.RoomRentPerDay
	if capPerDay <= 0 {
		return match{}, false
	}
	days := item.Units
	if days <= 0 {
		days = ev.bill.StayDays()
	}
	if days <= 0 {
		return match{}, false
	}

	excess := entity.ToPaise(item.Amount) - entity.ToPaise(capPerDay)*int64(days)
	if excess <= 0 {
		return match{}, false
	}

	perDay := item.Amount / float64(days)
	return match{
		amount: entity.FromPaise(excess),
		reason: fmt.Sprintf("%q: room rent of %s per day for %d day(s) exceeds the policy cap of %s per day",
			item.Label, entity.FormatINR(perDay), days, entity.FormatINR(capPerDay)),
		clause: "Room rent limit",
	}, true
}

func policyExcluded(ev *evaluation, item entity.LineItem) (match, bool) {
	term, ok := ev.policy.Exclusion(item.Category)
	if !ok {
		return match{}, false
	}
	clause := term.Reference
	if clause == "" {
		clause = "Policy exclusions"
	}
	return match{
		amount: item.Amount,
		reason: fmt.Sprintf("%q: category %s is excluded by the policy", item.Label, item.Category),
		clause: clause,
	}, true
}

// subLimitExceeded adds the item to its category's running total and reports
// the part of the excess this item introduced
func subLimitExceeded(ev *evaluation, item entity.LineItem) (match, bool) {
	sl, ok := ev.policy.SubLimitFor(item.Category)
	if !ok {
		return match{}, false
	}
	limit := entity.ToPaise(sl.Limit(ev.policy.SumInsured))
	if limit <= 0 {
		return match{}, false
	}

	before := ev.running[item.Category]
	after := before + entity.ToPaise(item.Amount)
	ev.running[item.Category] = after

	introduced := overLimit(after, limit) - overLimit(before, limit)
	if introduced <= 0 {
		return match{}, false
	}

	clause := sl.Reference
	if clause == "" {
		clause = "Sub-limits"
	}
	return match{
		amount: entity.FromPaise(introduced),
		reason: fmt.Sprintf("%q: %s charges exceed the policy sub-limit of %s",
			item.Label, item.Category, entity.FormatINR(entity.FromPaise(limit))),
		clause: clause,
	}, true
}

func overLimit(total, limit int64) int64 {
	if total > limit {
		return total - limit
	}
	return 0
}

// flagTypeForCategory maps a bill category to the flag type used when a rule
// does not fix one
func flagTypeForCategory(c entity.Category) entity.FlagType {
	switch c {
	case entity.CategoryConsumables:
		return entity.FlagConsumables
	case entity.CategoryRegistrationFee:
		return entity.FlagRegistrationFee
	case entity.CategoryServiceCharge:
		return entity.FlagNonMedical
	default:
		return entity.FlagMisc
	}
}
