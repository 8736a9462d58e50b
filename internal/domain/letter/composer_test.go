package letter

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

func admitted(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func cleanBill() *entity.Bill {
	return &entity.Bill{
		BillID:        "BILL-C",
		HospitalName:  "City Care Hospital",
		PatientName:   "Ravi Kumar",
		AdmissionDate: admitted(2024, time.June, 10),
		LineItems: []entity.LineItem{
			{ID: "LI-001", Label: "Room Rent", Category: entity.CategoryRoomRent, Amount: 16000, Units: 2},
			{ID: "LI-002", Label: "Surgery", Category: entity.CategorySurgery, Amount: 40000},
			{ID: "LI-003", Label: "Medicines", Category: entity.CategoryMedicines, Amount: 9000},
			{ID: "LI-004", Label: "Lab", Category: entity.CategoryLab, Amount: 3000},
		},
	}
}

func cleanPolicy() *entity.PolicyTerms {
	return &entity.PolicyTerms{
		PolicyID:    "POL-1",
		HolderName:  "Ravi Kumar",
		InsurerName: "Suraksha General Insurance",
		SumInsured:  500000,
	}
}

func TestCompose_NoFlags(t *testing.T) {
	want := `To
The Claims Department
Suraksha General Insurance

Subject: Query regarding Claim for Patient Ravi Kumar (Policy: POL-1)
Bill No: BILL-C

Dear Sir/Madam,

We are writing regarding the hospital bill BILL-C raised by City Care Hospital for Ravi Kumar (Admission Date: 10 Jun 2024).

No specific discrepancies were found. The claim appears to be fully compliant with the policy terms.

Summary
   Total Billed: INR 68,000.00
   Amount Under Review: INR 0.00
   Fully Covered Amount: INR 68,000.00

Total Bill Amount: INR 68,000.00

We request you to reconsider this claim and process the admissible amount at the earliest.

Sincerely,
Ravi Kumar
`

	got, err := Compose(cleanBill(), cleanPolicy(), nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func mixedFlags() []entity.Flag {
	return []entity.Flag{
		{
			Type:                entity.FlagConsumables,
			Severity:            entity.SeverityWarning,
			Scope:               entity.ScopeCharge,
			LineItemID:          "LI-006",
			AmountAffected:      entity.AmountPtr(8500),
			Reason:              "consumables are non-payable",
			RegulatoryReference: "IRDAI/HLT/REG/CIR/003/01/2013",
		},
		{
			Type:         entity.FlagMisc,
			Severity:     entity.SeverityInfo,
			Scope:        entity.ScopeInformational,
			Reason:       "co-payment applies",
			PolicyClause: "Co-payment",
		},
		{
			Type:           entity.FlagWaitingPeriod,
			Severity:       entity.SeverityError,
			Scope:          entity.ScopeEligibility,
			AmountAffected: entity.AmountPtr(68000),
			Reason:         "waiting period not served",
			PolicyClause:   "Initial waiting period",
		},
	}
}

func TestCompose_GroupsByScopeAndNumbers(t *testing.T) {
	got, err := Compose(cleanBill(), cleanPolicy(), mixedFlags())
	require.NoError(t, err)

	eligibility := strings.Index(got, "Eligibility Findings")
	charge := strings.Index(got, "Charge Findings")
	info := strings.Index(got, "Informational Notes")
	require.True(t, eligibility > 0 && charge > eligibility && info > charge, got)

	assert.Contains(t, got, "1. (!) [WAITING_PERIOD] waiting period not served\n   Potential Impact: INR 68,000.00\n   Policy Reference: Initial waiting period\n")
	assert.Contains(t, got, "2. (*) [CONSUMABLES] consumables are non-payable\n   Line Item: LI-006\n   Potential Impact: INR 8,500.00\n   Regulatory Reference: IRDAI/HLT/REG/CIR/003/01/2013\n")
	assert.Contains(t, got, "3. (i) [MISC] co-payment applies\n   Policy Reference: Co-payment\n")
	assert.Contains(t, got, "Amount Under Review: INR 68,000.00")
	assert.Contains(t, got, "the full amount is held until it is resolved")
	assert.NotContains(t, got, "No specific discrepancies")
}

func TestCompose_ByteIdenticalOnRetry(t *testing.T) {
	first, err := Compose(cleanBill(), cleanPolicy(), mixedFlags())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := Compose(cleanBill(), cleanPolicy(), mixedFlags())
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestCompose_FallbacksForMissingMetadata(t *testing.T) {
	bill := cleanBill()
	bill.PatientName = ""
	bill.HospitalName = ""
	bill.AdmissionDate = nil
	bill.StatedTotal = 70000
	policy := &entity.PolicyTerms{}

	got, err := Compose(bill, policy, nil)
	require.NoError(t, err)
	assert.Contains(t, got, "The Claims Department\nInsurance Company\n")
	assert.Contains(t, got, "Claim for Patient the patient (Policy: not stated)")
	assert.Contains(t, got, "raised by the hospital for the patient.\n")
	assert.Contains(t, got, "Total Bill Amount: INR 70,000.00")
}

func TestCompose_HeaderDetails(t *testing.T) {
	bill := cleanBill()
	bill.BillDate = admitted(2024, time.June, 14)
	policy := cleanPolicy()
	policy.InsurerAddress = "Claims Office, 12 MG Road, Bengaluru 560001"

	got, err := Compose(bill, policy, nil)
	require.NoError(t, err)
	assert.Contains(t, got, "The Claims Department\nSuraksha General Insurance\nClaims Office, 12 MG Road, Bengaluru 560001\n\nSubject:")
	assert.Contains(t, got, "(Policy: POL-1)\nBill No: BILL-C\nBill Date: 14 Jun 2024\n\nDear Sir/Madam,")

	bill.BillID = ""
	got, err = Compose(bill, policy, nil)
	require.NoError(t, err)
	assert.Contains(t, got, "(Policy: POL-1)\nBill Date: 14 Jun 2024\n\nDear Sir/Madam,")
	assert.NotContains(t, got, "Bill No:")
}

func TestCompose_RequiresInputs(t *testing.T) {
	_, err := Compose(nil, cleanPolicy(), nil)

	var ve *entity.ValidationError
	assert.True(t, errors.As(err, &ve))
}
