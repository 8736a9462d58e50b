package rules

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(b *entity.Bill, p *entity.PolicyTerms)
		wantField string
	}{
		{"valid input", func(b *entity.Bill, p *entity.PolicyTerms) {}, ""},
		{"empty id", func(b *entity.Bill, p *entity.PolicyTerms) { b.LineItems[1].ID = "" }, "line_items[1].id"},
		{"duplicate id", func(b *entity.Bill, p *entity.PolicyTerms) { b.LineItems[3].ID = "LI-001" }, "line_items[3].id"},
		{"negative amount", func(b *entity.Bill, p *entity.PolicyTerms) { b.LineItems[0].Amount = -5 }, "line_items[0].amount"},
		{"NaN amount", func(b *entity.Bill, p *entity.PolicyTerms) { b.LineItems[0].Amount = math.NaN() }, "line_items[0].amount"},
		{"unknown category", func(b *entity.Bill, p *entity.PolicyTerms) { b.LineItems[4].Category = "food" }, "line_items[4].category"},
		{"negative units", func(b *entity.Bill, p *entity.PolicyTerms) { b.LineItems[0].Units = -1 }, "line_items[0].units"},
		{"discharge before admission", func(b *entity.Bill, p *entity.PolicyTerms) { b.DischargeDate = date(2024, time.February, 1) }, "discharge_date"},
		{"negative cap", func(b *entity.Bill, p *entity.PolicyTerms) { p.RoomRentPerDay = -1 }, "policy.room_rent_per_day"},
		{"negative waiting period", func(b *entity.Bill, p *entity.PolicyTerms) { p.WaitingPeriodMonths = -3 }, "policy.waiting_period_months"},
		{"copay above 100", func(b *entity.Bill, p *entity.PolicyTerms) { p.CopayPercentage = 120 }, "policy.copay_percentage"},
		{"unknown excluded category", func(b *entity.Bill, p *entity.PolicyTerms) {
			p.ExcludedCategories = []entity.CategoryTerm{{Category: "cosmetic"}}
		}, "policy.excluded_categories[0].category"},
		{"negative sub-limit", func(b *entity.Bill, p *entity.PolicyTerms) {
			p.SubLimits = []entity.SubLimit{{Category: entity.CategoryLab, LimitAmount: -10}}
		}, "policy.sub_limits[0].limit_amount"},
		{"duplicate sub-limit", func(b *entity.Bill, p *entity.PolicyTerms) {
			p.SubLimits = []entity.SubLimit{{Category: entity.CategoryLab, LimitAmount: 10}, {Category: entity.CategoryLab, LimitAmount: 20}}
		}, "policy.sub_limits[1].category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bill, policy := scenarioABill(), scenarioAPolicy()
			tt.mutate(bill, policy)

			err := Validate(bill, policy)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var ve *entity.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestValidate_NilInputs(t *testing.T) {
	var ve *entity.ValidationError

	require.True(t, errors.As(Validate(nil, scenarioAPolicy()), &ve))
	assert.Equal(t, "bill", ve.Field)

	require.True(t, errors.As(Validate(scenarioABill(), nil), &ve))
	assert.Equal(t, "policy", ve.Field)
}
