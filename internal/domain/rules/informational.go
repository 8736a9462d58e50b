package rules

import (
	"fmt"

	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

type informationalRule struct {
	name  string
	check func(ev *evaluation) []entity.Flag
}

var informationalRules = []informationalRule{
	{name: "copay", check: copayNotice},
	{name: "waiting_period_unverified", check: waitingPeriodUnverified},
	{name: "stated_total_mismatch", check: statedTotalMismatch},
	{name: "within_sub_limit", check: withinSubLimits},
}

func infoFlag(t entity.FlagType, reason, clause string) entity.Flag {
	return entity.Flag{
		Type:         t,
		Severity:     entity.SeverityInfo,
		Scope:        entity.ScopeInformational,
		Reason:       reason,
		PolicyClause: clause,
	}
}

func copayNotice(ev *evaluation) []entity.Flag {
	pct := ev.policy.CopayPercentage
	if pct <= 0 {
		return nil
	}
	share := entity.FromPaise(entity.ToPaise(ev.bill.Total() * pct / 100))
	reason := fmt.Sprintf("Policy has a %g%% co-payment clause; the patient share of this bill is about %s",
		pct, entity.FormatINR(share))
	return []entity.Flag{infoFlag(entity.FlagMisc, reason, "Co-payment")}
}

func waitingPeriodUnverified(ev *evaluation) []entity.Flag {
	if ev.policy.WaitingPeriodMonths <= 0 {
		return nil
	}
	if _, known := monthsSinceInception(ev.policy.InceptionDate, ev.bill.AdmissionDate); known {
		return nil
	}
	reason := fmt.Sprintf("The %d month waiting period could not be verified because the policy inception or admission date is missing",
		ev.policy.WaitingPeriodMonths)
	return []entity.Flag{infoFlag(entity.FlagWaitingPeriod, reason, "Initial waiting period")}
}

func statedTotalMismatch(ev *evaluation) []entity.Flag {
	if !ev.bill.TotalMismatch(ev.tolerance) {
		return nil
	}
	reason := fmt.Sprintf("Bill states a total of %s but its line items add up to %s",
		entity.FormatINR(ev.bill.StatedTotal), entity.FormatINR(ev.bill.Total()))
	return []entity.Flag{infoFlag(entity.FlagMisc, reason, "")}
}

// withinSubLimits surfaces sub-limited categories that the bill stays within,
// in policy order
func withinSubLimits(ev *evaluation) []entity.Flag {
	var flags []entity.Flag
	for _, sl := range ev.policy.SubLimits {
		limit := entity.ToPaise(sl.Limit(ev.policy.SumInsured))
		billed := ev.running[sl.Category]
		if limit <= 0 || billed <= 0 || billed > limit {
			continue
		}
		reason := fmt.Sprintf("%s charges of %s are within the policy sub-limit of %s and fully covered",
			sl.Category, entity.FormatINR(entity.FromPaise(billed)), entity.FormatINR(entity.FromPaise(limit)))
		clause := sl.Reference
		if clause == "" {
			clause = "Sub-limits"
		}
		flags = append(flags, infoFlag(entity.FlagMisc, reason, clause))
	}
	return flags
}
