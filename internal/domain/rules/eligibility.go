package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

type eligibilityRule struct {
	name  string
	check func(ev *evaluation) (entity.Flag, bool)
}

var eligibilityRules = []eligibilityRule{
	{name: "pre_existing", check: preExistingUnmet},
	{name: "waiting_period", check: waitingPeriodUnmet},
	{name: "uncovered_procedure", check: uncoveredProcedures},
}

func eligibilityFlag(ev *evaluation, t entity.FlagType, reason, clause string) entity.Flag {
	return entity.Flag{
		Type:           t,
		Severity:       entity.SeverityError,
		Scope:          entity.ScopeEligibility,
		AmountAffected: entity.AmountPtr(ev.bill.Total()),
		Reason:         reason,
		PolicyClause:   clause,
	}
}

// preExistingUnmet flags diagnoses on the PED list when the PED waiting period
// has not been served. An unknown inception or admission date counts as unmet.
func preExistingUnmet(ev *evaluation) (entity.Flag, bool) {
	p := ev.policy
	if !p.PEDClause || len(p.PEDList) == 0 {
		return entity.Flag{}, false
	}

	matched := matchPED(ev.bill.Diagnosis, p.PEDList)
	if len(matched) == 0 {
		return entity.Flag{}, false
	}

	months, known := monthsSinceInception(p.InceptionDate, ev.bill.AdmissionDate)
	if known && months >= p.PEDWaitingPeriodMonths {
		return entity.Flag{}, false
	}

	var served string
	if known {
		served = fmt.Sprintf("the policy had been active for %d month(s) at admission", months)
	} else {
		served = "the policy inception date could not be established"
	}
	reason := fmt.Sprintf("Pre-existing condition(s) %s fall under a %d month PED waiting period and %s",
		strings.Join(matched, ", "), p.PEDWaitingPeriodMonths, served)
	return eligibilityFlag(ev, entity.FlagPreExisting, reason, "Pre-existing disease waiting period"), true
}

// matchPED returns diagnoses that equal a PED entry, ignoring case, or contain
// a PED entry longer than three characters
func matchPED(diagnoses, pedList []string) []string {
	peds := make([]string, 0, len(pedList))
	for _, ped := range pedList {
		if n := strings.ToLower(strings.TrimSpace(ped)); n != "" {
			peds = append(peds, n)
		}
	}

	var matched []string
	for _, diagnosis := range diagnoses {
		d := strings.ToLower(strings.TrimSpace(diagnosis))
		if d == "" {
			continue
		}
		for _, ped := range peds {
			if d == ped || (len(ped) > 3 && strings.Contains(d, ped)) {
				matched = append(matched, strings.TrimSpace(diagnosis))
				break
			}
		}
	}
	return matched
}

func waitingPeriodUnmet(ev *evaluation) (entity.Flag, bool) {
	required := ev.policy.WaitingPeriodMonths
	if required <= 0 {
		return entity.Flag{}, false
	}
	months, known := monthsSinceInception(ev.policy.InceptionDate, ev.bill.AdmissionDate)
	if !known || months >= required {
		return entity.Flag{}, false
	}

	reason := fmt.Sprintf("Admission on %s was %d month(s) after policy inception on %s; the policy requires a waiting period of %d month(s)",
		ev.bill.AdmissionDate.Format("2006-01-02"), months, ev.policy.InceptionDate.Format("2006-01-02"), required)
	return eligibilityFlag(ev, entity.FlagWaitingPeriod, reason, "Initial waiting period"), true
}

func uncoveredProcedures(ev *evaluation) (entity.Flag, bool) {
	if len(ev.policy.CoveredProcedures) == 0 {
		return entity.Flag{}, false
	}

	covered := make(map[string]bool, len(ev.policy.CoveredProcedures))
	for _, proc := range ev.policy.CoveredProcedures {
		covered[strings.ToLower(strings.TrimSpace(proc))] = true
	}

	var missing []string
	for _, proc := range ev.bill.Procedures {
		name := strings.TrimSpace(proc)
		if name == "" || covered[strings.ToLower(name)] {
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return entity.Flag{}, false
	}

	reason := fmt.Sprintf("Procedure(s) not covered by the policy: %s", strings.Join(missing, ", "))
	return eligibilityFlag(ev, entity.FlagUncoveredProcedure, reason, "Covered procedures"), true
}

// monthsSinceInception counts whole months from inception to admission.
// The second result is false when either date is unknown.
func monthsSinceInception(inception, admission *time.Time) (int, bool) {
	if inception == nil || admission == nil {
		return 0, false
	}
	from, to := inception.UTC(), admission.UTC()
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		months = 0
	}
	return months, true
}
