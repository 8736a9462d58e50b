// Package letter renders the dispute letter sent to the insurer's claims
// department. Output depends only on its inputs, so recomposing after a retry
// yields the same text.
package letter

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
	"github.com/G1r1shCodes/BimaBot/internal/domain/finance"
)

//go:embed letter.tmpl
var letterText string

var letterTemplate = template.Must(template.New("letter").Parse(letterText))

const dateLayout = "02 Jan 2006"

type finding struct {
	Number     int
	Marker     string
	Type       string
	Reason     string
	LineItem   string
	Impact     string
	Clause     string
	Regulatory string
}

type section struct {
	Title    string
	Findings []finding
}

type summary struct {
	Total   string
	Review  string
	Covered string
	Blocked bool
}

type view struct {
	Insurer        string
	InsurerAddress string
	Patient        string
	PolicyID       string
	BillID         string
	BillDate       string
	Hospital       string
	Admission      string
	Sections       []section
	Summary        summary
	TotalBill      string
	Signatory      string
}

var sectionOrder = []struct {
	scope entity.Scope
	title string
}{
	{entity.ScopeEligibility, "Eligibility Findings"},
	{entity.ScopeCharge, "Charge Findings"},
	{entity.ScopeInformational, "Informational Notes"},
}

var markers = map[entity.Severity]string{
	entity.SeverityError:   "(!)",
	entity.SeverityWarning: "(*)",
	entity.SeverityInfo:    "(i)",
}

// Compose renders the dispute letter for a bill, its policy and the flags
// raised against it. Findings are grouped eligibility, charge, informational
// and numbered continuously; an empty flag list yields the no-discrepancy text.
func Compose(bill *entity.Bill, policy *entity.PolicyTerms, flags []entity.Flag) (string, error) {
	if bill == nil || policy == nil {
		return "", &entity.ValidationError{Field: "letter", Reason: "bill and policy are required"}
	}

	totals, err := finance.Aggregate(bill, flags)
	if err != nil {
		return "", fmt.Errorf("compose letter: %w", err)
	}

	v := view{
		Insurer:        orDefault(policy.InsurerName, "Insurance Company"),
		InsurerAddress: policy.InsurerAddress,
		Patient:        orDefault(bill.PatientName, orDefault(policy.HolderName, "the patient")),
		PolicyID:       orDefault(policy.PolicyID, "not stated"),
		BillID:         bill.BillID,
		Hospital:       orDefault(bill.HospitalName, "the hospital"),
		Sections:       buildSections(flags),
		Summary: summary{
			Total:   entity.FormatINR(totals.TotalBilled),
			Review:  entity.FormatINR(totals.AmountUnderReview),
			Covered: entity.FormatINR(totals.FullyCoveredAmount),
			Blocked: totals.EligibilityBlocked,
		},
		TotalBill: entity.FormatINR(billedAmount(bill)),
		Signatory: orDefault(policy.HolderName, orDefault(bill.PatientName, "Policy Holder")),
	}
	if bill.AdmissionDate != nil {
		v.Admission = bill.AdmissionDate.Format(dateLayout)
	}
	if bill.BillDate != nil {
		v.BillDate = bill.BillDate.Format(dateLayout)
	}

	var buf bytes.Buffer
	if err := letterTemplate.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render letter: %w", err)
	}
	return buf.String(), nil
}

func buildSections(flags []entity.Flag) []section {
	var sections []section
	n := 0
	for _, s := range sectionOrder {
		var findings []finding
		for _, f := range flags {
			if f.Scope != s.scope {
				continue
			}
			n++
			fd := finding{
				Number:     n,
				Marker:     markers[f.Severity],
				Type:       strings.ToUpper(string(f.Type)),
				Reason:     f.Reason,
				LineItem:   f.LineItemID,
				Clause:     f.PolicyClause,
				Regulatory: f.RegulatoryReference,
			}
			if f.AmountAffected != nil && *f.AmountAffected > 0 {
				fd.Impact = entity.FormatINR(*f.AmountAffected)
			}
			findings = append(findings, fd)
		}
		if len(findings) > 0 {
			sections = append(sections, section{Title: s.title, Findings: findings})
		}
	}
	return sections
}

// billedAmount prefers the total printed on the bill
func billedAmount(bill *entity.Bill) float64 {
	if bill.StatedTotal > 0 {
		return bill.StatedTotal
	}
	return bill.Total()
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return strings.TrimSpace(s)
}
