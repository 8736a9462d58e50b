package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
	"github.com/G1r1shCodes/BimaBot/internal/domain/finance"
	"github.com/G1r1shCodes/BimaBot/internal/domain/letter"
	"github.com/G1r1shCodes/BimaBot/internal/domain/rules"
	"github.com/G1r1shCodes/BimaBot/internal/infrastructure/report"
	"github.com/G1r1shCodes/BimaBot/pkg/utils"
)

var evalOpts struct {
	billPath   string
	policyPath string
	tolerance  float64
	letterOnly bool
	xlsxPath   string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Audit a structured bill against a structured policy",
	Long: `Reads a bill and policy as JSON, runs the audit rules and prints the flags,
financial summary and dispute letter. No documents are extracted and no
external services are called.`,
	RunE: runEvaluate,
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVar(&evalOpts.billPath, "bill", "", "Path to bill JSON (required)")
	f.StringVar(&evalOpts.policyPath, "policy", "", "Path to policy JSON (required)")
	f.Float64Var(&evalOpts.tolerance, "total-tolerance", 1, "Rupees allowed between stated and computed bill total")
	f.BoolVar(&evalOpts.letterOnly, "letter", false, "Print only the dispute letter")
	f.StringVar(&evalOpts.xlsxPath, "xlsx", "", "Also write the audit workbook to this path")
	_ = evaluateCmd.MarkFlagRequired("bill")
	_ = evaluateCmd.MarkFlagRequired("policy")

	rootCmd.AddCommand(evaluateCmd)
}

// evaluation is the printed result of an offline audit
type evaluation struct {
	Flags         []entity.Flag           `json:"flags"`
	Summary       entity.FinancialSummary `json:"summary"`
	DisputeLetter string                  `json:"dispute_letter"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	log, err := utils.NewCLILogger(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	var bill entity.Bill
	if err := readJSON(evalOpts.billPath, &bill); err != nil {
		return err
	}
	var policy entity.PolicyTerms
	if err := readJSON(evalOpts.policyPath, &policy); err != nil {
		return err
	}

	result, err := evaluate(&bill, &policy, evalOpts.tolerance)
	if err != nil {
		return err
	}
	log.Debug("Audit evaluated",
		zap.Int("flags", len(result.Flags)),
		zap.Float64("under_review", result.Summary.AmountUnderReview))

	if evalOpts.xlsxPath != "" {
		if err := writeWorkbook(evalOpts.xlsxPath, &bill, &policy, result, log); err != nil {
			return err
		}
		log.Info("Workbook written", zap.String("path", evalOpts.xlsxPath))
	}

	return printEvaluation(cmd.OutOrStdout(), result, evalOpts.letterOnly)
}

// evaluate runs the rules, aggregator and composer in pipeline order
func evaluate(bill *entity.Bill, policy *entity.PolicyTerms, tolerance float64) (*evaluation, error) {
	flags, err := rules.New(rules.WithTotalTolerance(tolerance)).Evaluate(bill, policy)
	if err != nil {
		return nil, err
	}
	summary, err := finance.Aggregate(bill, flags)
	if err != nil {
		return nil, err
	}
	text, err := letter.Compose(bill, policy, flags)
	if err != nil {
		return nil, err
	}
	return &evaluation{Flags: flags, Summary: summary, DisputeLetter: text}, nil
}

func printEvaluation(w io.Writer, result *evaluation, letterOnly bool) error {
	if letterOnly {
		_, err := fmt.Fprintln(w, result.DisputeLetter)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func writeWorkbook(path string, bill *entity.Bill, policy *entity.PolicyTerms, result *evaluation, log *zap.Logger) error {
	now := time.Now().UTC()
	summary := result.Summary
	session := &entity.AuditSession{
		ID:            "offline",
		Status:        entity.StatusCompleted,
		Bill:          bill,
		Policy:        policy,
		Flags:         result.Flags,
		Summary:       &summary,
		DisputeLetter: result.DisputeLetter,
		CreatedAt:     now,
		UpdatedAt:     now,
		CompletedAt:   &now,
	}

	data, err := report.NewWorkbookExporter(log).ExportWorkbook(session)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
