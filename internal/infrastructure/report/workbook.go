// Package report renders completed audit sessions as downloadable files
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/G1r1shCodes/BimaBot/internal/application/port"
	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

// Sheet names in the exported workbook
const (
	SheetSummary   = "Summary"
	SheetLineItems = "Line Items"
	SheetFlags     = "Findings"
)

// inrFormat is the built-in "#,##0.00" number format
const inrFormat = 4

var (
	lineItemHeader = []interface{}{"ID", "Label", "Category", "Units", "Amount (INR)", "Findings", "Highest Severity", "Under Review (INR)"}
	flagHeader     = []interface{}{"#", "Type", "Severity", "Scope", "Line Item", "Amount (INR)", "Reason", "Policy Clause", "Regulatory Reference"}
)

// WorkbookExporter implements port.ReportExporter with excelize
type WorkbookExporter struct {
	logger *zap.Logger
}

// NewWorkbookExporter creates a new WorkbookExporter
func NewWorkbookExporter(logger *zap.Logger) *WorkbookExporter {
	return &WorkbookExporter{logger: logger}
}

type styles struct {
	header int
	money  int
	label  int
}

// ExportWorkbook writes the summary, line items and findings of a completed
// session to an xlsx workbook
func (w *WorkbookExporter) ExportWorkbook(session *entity.AuditSession) ([]byte, error) {
	if session == nil || session.Bill == nil || session.Summary == nil {
		return nil, fmt.Errorf("session has no audit result")
	}

	file := excelize.NewFile()
	defer file.Close()

	st, err := newStyles(file)
	if err != nil {
		return nil, err
	}

	if err := file.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := w.fillSummary(file, st, session); err != nil {
		return nil, fmt.Errorf("failed to fill summary: %w", err)
	}

	if _, err := file.NewSheet(SheetLineItems); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := w.fillLineItems(file, st, session); err != nil {
		return nil, fmt.Errorf("failed to fill line items: %w", err)
	}

	if _, err := file.NewSheet(SheetFlags); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := w.fillFlags(file, st, session.Flags); err != nil {
		return nil, fmt.Errorf("failed to fill findings: %w", err)
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	w.logger.Info("Audit workbook exported",
		zap.String("audit_id", session.ID),
		zap.Int("line_items", len(session.Bill.LineItems)),
		zap.Int("flags", len(session.Flags)))

	return buf.Bytes(), nil
}

func newStyles(file *excelize.File) (styles, error) {
	header, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DCE6F1"}, Pattern: 1},
	})
	if err != nil {
		return styles{}, fmt.Errorf("failed to create header style: %w", err)
	}
	money, err := file.NewStyle(&excelize.Style{NumFmt: inrFormat})
	if err != nil {
		return styles{}, fmt.Errorf("failed to create amount style: %w", err)
	}
	label, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return styles{}, fmt.Errorf("failed to create label style: %w", err)
	}
	return styles{header: header, money: money, label: label}, nil
}

func (w *WorkbookExporter) fillSummary(file *excelize.File, st styles, session *entity.AuditSession) error {
	bill, summary := session.Bill, session.Summary

	var policyID, insurer string
	if session.Policy != nil {
		policyID, insurer = session.Policy.PolicyID, session.Policy.InsurerName
	}
	blocked := "No"
	if summary.EligibilityBlocked {
		blocked = "Yes"
	}

	rows := [][]interface{}{
		{"Audit ID", session.ID},
		{"Status", session.Status},
		{"Hospital", bill.HospitalName},
		{"Patient", bill.PatientName},
		{"Bill ID", bill.BillID},
		{"Policy ID", policyID},
		{"Insurer", insurer},
		{"Total Billed (INR)", summary.TotalBilled},
		{"Amount Under Review (INR)", summary.AmountUnderReview},
		{"Fully Covered (INR)", summary.FullyCoveredAmount},
		{"Eligibility Blocked", blocked},
		{"Findings", len(session.Flags)},
	}
	if session.CompletedAt != nil {
		rows = append(rows, []interface{}{"Completed At", session.CompletedAt.Format("2006-01-02 15:04:05")})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return fmt.Errorf("failed to set row %d: %w", i+1, err)
		}
	}

	if err := file.SetCellStyle(SheetSummary, "A1", fmt.Sprintf("A%d", len(rows)), st.label); err != nil {
		return err
	}
	if err := file.SetCellStyle(SheetSummary, "B8", "B10", st.money); err != nil {
		return err
	}
	return file.SetColWidth(SheetSummary, "A", "B", 28)
}

func (w *WorkbookExporter) fillLineItems(file *excelize.File, st styles, session *entity.AuditSession) error {
	if err := file.SetSheetRow(SheetLineItems, "A1", &lineItemHeader); err != nil {
		return err
	}

	byItem := make(map[string][]entity.Flag)
	for _, f := range session.Flags {
		if f.LineItemID != "" {
			byItem[f.LineItemID] = append(byItem[f.LineItemID], f)
		}
	}

	for i, item := range session.Bill.LineItems {
		row := i + 2
		var (
			worst    entity.Severity
			review   float64
			findings int
		)
		for _, f := range byItem[item.ID] {
			findings++
			if f.Severity.Rank() > worst.Rank() {
				worst = f.Severity
			}
			if f.Scope == entity.ScopeCharge {
				review += f.Amount()
			}
		}

		values := []interface{}{item.ID, item.Label, item.Category.String(), item.Units, item.Amount, findings, string(worst), review}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(SheetLineItems, cell, &values); err != nil {
			return fmt.Errorf("failed to set line item at row %d: %w", row, err)
		}
	}

	last := len(session.Bill.LineItems) + 1
	if err := file.SetCellStyle(SheetLineItems, "A1", "H1", st.header); err != nil {
		return err
	}
	if last > 1 {
		if err := file.SetCellStyle(SheetLineItems, "E2", fmt.Sprintf("E%d", last), st.money); err != nil {
			return err
		}
		if err := file.SetCellStyle(SheetLineItems, "H2", fmt.Sprintf("H%d", last), st.money); err != nil {
			return err
		}
	}
	return file.SetColWidth(SheetLineItems, "B", "B", 36)
}

func (w *WorkbookExporter) fillFlags(file *excelize.File, st styles, flags []entity.Flag) error {
	if err := file.SetSheetRow(SheetFlags, "A1", &flagHeader); err != nil {
		return err
	}

	for i, f := range flags {
		row := i + 2
		var amount interface{}
		if f.AmountAffected != nil {
			amount = *f.AmountAffected
		}
		values := []interface{}{i + 1, string(f.Type), string(f.Severity), string(f.Scope), f.LineItemID, amount, f.Reason, f.PolicyClause, f.RegulatoryReference}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(SheetFlags, cell, &values); err != nil {
			return fmt.Errorf("failed to set finding at row %d: %w", row, err)
		}
	}

	if err := file.SetCellStyle(SheetFlags, "A1", "I1", st.header); err != nil {
		return err
	}
	if len(flags) > 0 {
		if err := file.SetCellStyle(SheetFlags, "F2", fmt.Sprintf("F%d", len(flags)+1), st.money); err != nil {
			return err
		}
	}
	return file.SetColWidth(SheetFlags, "G", "G", 60)
}

var _ port.ReportExporter = (*WorkbookExporter)(nil)
