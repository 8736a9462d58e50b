// Package finance derives the claim's financial summary from a bill and its flags.
package finance

import (
	"fmt"

	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

// Aggregate computes total billed, amount under review and fully covered amount.
//
// A blocking eligibility flag puts the whole bill under review. Otherwise only
// charge flags with warning or error severity count against the bill. All sums
// are done in paise.
func Aggregate(bill *entity.Bill, flags []entity.Flag) (entity.FinancialSummary, error) {
	if bill == nil {
		return entity.FinancialSummary{}, &entity.ValidationError{Field: "bill", Reason: "is required"}
	}

	total := entity.ToPaise(bill.Total())

	for _, f := range flags {
		if f.IsBlocking() {
			return entity.FinancialSummary{
				TotalBilled:        entity.FromPaise(total),
				AmountUnderReview:  entity.FromPaise(total),
				FullyCoveredAmount: 0,
				EligibilityBlocked: true,
			}, nil
		}
	}

	var review int64
	for _, f := range flags {
		if !countsAgainstBill(f) {
			continue
		}
		amount := entity.ToPaise(f.Amount())
		if amount < 0 {
			return entity.FinancialSummary{}, &entity.AggregationError{
				Reason: fmt.Sprintf("flag on %s has negative amount %.2f", f.LineItemID, f.Amount()),
			}
		}
		review += amount
	}

	covered := total - review
	if covered < 0 {
		return entity.FinancialSummary{}, &entity.AggregationError{
			Reason: fmt.Sprintf("amount under review %.2f exceeds total billed %.2f",
				entity.FromPaise(review), entity.FromPaise(total)),
		}
	}

	return entity.FinancialSummary{
		TotalBilled:        entity.FromPaise(total),
		AmountUnderReview:  entity.FromPaise(review),
		FullyCoveredAmount: entity.FromPaise(covered),
	}, nil
}

func countsAgainstBill(f entity.Flag) bool {
	if f.Scope != entity.ScopeCharge {
		return false
	}
	return f.Severity == entity.SeverityWarning || f.Severity == entity.SeverityError
}
