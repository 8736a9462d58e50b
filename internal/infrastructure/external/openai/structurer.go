// Package openai structures bill and policy text with the OpenAI chat API
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/G1r1shCodes/BimaBot/internal/application/port"
	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

var errEmptyResponse = errors.New("no response from OpenAI")

// chatClient is the subset of the go-openai client used here
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds OpenAI connection settings
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	VisionModel   string
	MaxInputChars int
}

// Structurer implements port.FieldStructurer using OpenAI JSON mode
type Structurer struct {
	client  chatClient
	prompts *PromptConfig
	config  Config
	logger  *zap.Logger
}

// NewStructurer creates a new OpenAI structurer
func NewStructurer(config Config, prompts *PromptConfig, logger *zap.Logger) *Structurer {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return newStructurer(openai.NewClientWithConfig(clientConfig), config, prompts, logger)
}

func newStructurer(client chatClient, config Config, prompts *PromptConfig, logger *zap.Logger) *Structurer {
	if config.Model == "" {
		config.Model = openai.GPT4o
	}
	if config.VisionModel == "" {
		config.VisionModel = config.Model
	}
	if config.MaxInputChars <= 0 {
		config.MaxInputChars = 48000
	}
	return &Structurer{
		client:  client,
		prompts: prompts,
		config:  config,
		logger:  logger,
	}
}

// StructureBill extracts bill header fields and line items from raw text
func (s *Structurer) StructureBill(ctx context.Context, text string) (*entity.Bill, error) {
	var payload billPayload
	if err := s.completeJSON(ctx, "structure bill", s.prompts.BillExtraction, text, &payload); err != nil {
		return nil, err
	}

	bill := payload.toBill()
	s.logger.Info("Bill structured",
		zap.String("bill_id", bill.BillID),
		zap.Int("line_items", len(bill.LineItems)),
		zap.Float64("stated_total", bill.StatedTotal))
	return bill, nil
}

// StructurePolicy extracts policy terms from raw text
func (s *Structurer) StructurePolicy(ctx context.Context, text string) (*entity.PolicyTerms, error) {
	var payload policyPayload
	if err := s.completeJSON(ctx, "structure policy", s.prompts.PolicyExtraction, text, &payload); err != nil {
		return nil, err
	}

	policy := payload.toPolicy()
	s.logger.Info("Policy structured",
		zap.String("policy_id", policy.PolicyID),
		zap.Float64("sum_insured", policy.SumInsured),
		zap.Int("exclusions", len(policy.ExcludedCategories)),
		zap.Int("sub_limits", len(policy.SubLimits)))
	return policy, nil
}

func (s *Structurer) completeJSON(ctx context.Context, op string, prompt Prompt, text string, out interface{}) error {
	if len(text) > s.config.MaxInputChars {
		s.logger.Warn("Document text truncated",
			zap.String("op", op),
			zap.Int("chars", len(text)),
			zap.Int("limit", s.config.MaxInputChars))
		text = truncateUTF8(text, s.config.MaxInputChars)
	}

	user, err := renderTemplate(prompt.UserTemplate, struct{ Text string }{Text: text})
	if err != nil {
		return &entity.CollaboratorError{Collaborator: collaboratorName, Op: op, Err: err}
	}

	s.logger.Debug("Sending structuring request to OpenAI", zap.String("op", op), zap.String("model", s.config.Model))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Temperature: prompt.Temperature,
		MaxTokens:   prompt.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		s.logger.Error("OpenAI API call failed", zap.String("op", op), zap.Error(err))
		return classify(op, err)
	}
	if len(resp.Choices) == 0 {
		return malformed(op, errEmptyResponse)
	}

	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(extractJSON(content)), out); err != nil {
		s.logger.Warn("Failed to parse OpenAI response",
			zap.String("op", op),
			zap.Error(err),
			zap.Int("length", len(content)))
		return malformed(op, fmt.Errorf("failed to parse response: %w", err))
	}
	return nil
}

// extractJSON strips markdown fences and any text around the outermost object
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return content
	}
	return content[start : end+1]
}

// amount accepts numbers and strings such as "24,000.50" or "Rs. 1,200"
type amount float64

func (a *amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*a = amount(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	s = strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	s = strings.TrimLeft(s, ".")
	if s == "" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("amount %q: %w", string(data), err)
	}
	*a = amount(f)
	return nil
}

type lineItemPayload struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Category string `json:"category"`
	Amount   amount `json:"amount"`
	Units    int    `json:"units"`
	RawText  string `json:"raw_text"`
}

type billPayload struct {
	BillID        string            `json:"bill_id"`
	BillDate      string            `json:"bill_date"`
	HospitalName  string            `json:"hospital_name"`
	PatientName   string            `json:"patient_name"`
	AdmissionDate string            `json:"admission_date"`
	DischargeDate string            `json:"discharge_date"`
	Diagnosis     []string          `json:"diagnosis"`
	Procedures    []string          `json:"procedures"`
	LineItems     []lineItemPayload `json:"line_items"`
	StatedTotal   amount            `json:"stated_total"`
	Currency      string            `json:"currency"`
}

func (p *billPayload) toBill() *entity.Bill {
	bill := &entity.Bill{
		BillID:        strings.TrimSpace(p.BillID),
		BillDate:      parseDate(p.BillDate),
		HospitalName:  strings.TrimSpace(p.HospitalName),
		PatientName:   strings.TrimSpace(p.PatientName),
		AdmissionDate: parseDate(p.AdmissionDate),
		DischargeDate: parseDate(p.DischargeDate),
		Diagnosis:     compact(p.Diagnosis),
		Procedures:    compact(p.Procedures),
		StatedTotal:   float64(p.StatedTotal),
		Currency:      strings.ToUpper(strings.TrimSpace(p.Currency)),
	}
	if bill.Currency == "" {
		bill.Currency = entity.DefaultCurrency
	}

	seen := make(map[string]bool, len(p.LineItems))
	for i, li := range p.LineItems {
		id := strings.TrimSpace(li.ID)
		if id == "" || seen[id] {
			id = fmt.Sprintf("LI-%03d", i+1)
		}
		seen[id] = true

		raw := li.Category
		if strings.TrimSpace(raw) == "" {
			raw = li.Label
		}
		bill.LineItems = append(bill.LineItems, entity.LineItem{
			ID:       id,
			Label:    strings.TrimSpace(li.Label),
			Category: entity.NormalizeCategory(raw),
			Amount:   float64(li.Amount),
			Units:    li.Units,
			RawText:  li.RawText,
		})
	}
	return bill
}

type categoryTermPayload struct {
	Category  string `json:"category"`
	Reference string `json:"reference"`
}

type subLimitPayload struct {
	Category        string `json:"category"`
	LimitAmount     amount `json:"limit_amount"`
	LimitPercentage amount `json:"limit_percentage"`
	Reference       string `json:"reference"`
}

type policyPayload struct {
	PolicyID               string                `json:"policy_id"`
	HolderName             string                `json:"holder_name"`
	InsurerName            string                `json:"insurer_name"`
	InsurerAddress         string                `json:"insurer_address"`
	SumInsured             amount                `json:"sum_insured"`
	InceptionDate          string                `json:"inception_date"`
	RoomRentPerDay         amount                `json:"room_rent_per_day"`
	WaitingPeriodMonths    int                   `json:"waiting_period_months"`
	PEDClause              bool                  `json:"ped_clause"`
	PEDWaitingPeriodMonths int                   `json:"ped_waiting_period_months"`
	PEDList                []string              `json:"ped_list"`
	ExcludedCategories     []categoryTermPayload `json:"excluded_categories"`
	CoveredProcedures      []string              `json:"covered_procedures"`
	SubLimits              []subLimitPayload     `json:"sub_limits"`
	CopayPercentage        amount                `json:"copay_percentage"`
}

func (p *policyPayload) toPolicy() *entity.PolicyTerms {
	policy := &entity.PolicyTerms{
		PolicyID:               strings.TrimSpace(p.PolicyID),
		HolderName:             strings.TrimSpace(p.HolderName),
		InsurerName:            strings.TrimSpace(p.InsurerName),
		InsurerAddress:         strings.TrimSpace(p.InsurerAddress),
		SumInsured:             float64(p.SumInsured),
		InceptionDate:          parseDate(p.InceptionDate),
		RoomRentPerDay:         float64(p.RoomRentPerDay),
		WaitingPeriodMonths:    p.WaitingPeriodMonths,
		PEDClause:              p.PEDClause,
		PEDWaitingPeriodMonths: p.PEDWaitingPeriodMonths,
		PEDList:                compact(p.PEDList),
		CoveredProcedures:      compact(p.CoveredProcedures),
		CopayPercentage:        float64(p.CopayPercentage),
	}

	excluded := make(map[entity.Category]bool)
	for _, term := range p.ExcludedCategories {
		category := entity.NormalizeCategory(term.Category)
		if excluded[category] {
			continue
		}
		excluded[category] = true
		policy.ExcludedCategories = append(policy.ExcludedCategories, entity.CategoryTerm{
			Category:  category,
			Reference: strings.TrimSpace(term.Reference),
		})
	}

	// labels that normalize to one category keep the tighter limit
	limitIndex := make(map[entity.Category]int)
	for _, sl := range p.SubLimits {
		limit := entity.SubLimit{
			Category:        entity.NormalizeCategory(sl.Category),
			LimitAmount:     float64(sl.LimitAmount),
			LimitPercentage: float64(sl.LimitPercentage),
			Reference:       strings.TrimSpace(sl.Reference),
		}
		if i, dup := limitIndex[limit.Category]; dup {
			if tighter(limit, policy.SubLimits[i], policy.SumInsured) {
				policy.SubLimits[i] = limit
			}
			continue
		}
		limitIndex[limit.Category] = len(policy.SubLimits)
		policy.SubLimits = append(policy.SubLimits, limit)
	}
	return policy
}

// tighter reports whether a caps the category below b. An unresolvable
// limit is never tighter.
func tighter(a, b entity.SubLimit, sumInsured float64) bool {
	la, lb := a.Limit(sumInsured), b.Limit(sumInsured)
	if la <= 0 {
		return false
	}
	return lb <= 0 || la < lb
}

// truncateUTF8 cuts text to at most n bytes without splitting a rune
func truncateUTF8(text string, n int) string {
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// parseDate returns nil for empty or unrecognised dates
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &t
		}
	}
	return nil
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

var _ port.FieldStructurer = (*Structurer)(nil)
