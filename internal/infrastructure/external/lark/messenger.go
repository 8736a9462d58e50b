package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/G1r1shCodes/BimaBot/internal/application/port"
	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

// messageSender is satisfied by MessageAPI
type messageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// Notifier implements port.SessionNotifier by posting an interactive card
type Notifier struct {
	sender        messageSender
	receiveIDType string
	receiveID     string
	logger        *zap.Logger
}

// NewNotifier creates a notifier posting to the receiver named in cfg
func NewNotifier(cfg Config, logger *zap.Logger) *Notifier {
	return newNotifier(NewMessageAPI(NewSDKClient(cfg, logger), logger), cfg, logger)
}

func newNotifier(sender messageSender, cfg Config, logger *zap.Logger) *Notifier {
	receiveIDType := cfg.ReceiveIDType
	if receiveIDType == "" {
		receiveIDType = "chat_id"
	}
	return &Notifier{
		sender:        sender,
		receiveIDType: receiveIDType,
		receiveID:     cfg.ReceiveID,
		logger:        logger,
	}
}

// NotifySessionFinished posts the outcome of a completed or failed session
func (n *Notifier) NotifySessionFinished(ctx context.Context, session *entity.AuditSession) error {
	if n.receiveID == "" {
		return fmt.Errorf("receive id cannot be empty")
	}
	if session == nil || !session.IsTerminal() {
		return fmt.Errorf("session is not finished")
	}

	card, err := json.Marshal(buildCard(session))
	if err != nil {
		return fmt.Errorf("failed to marshal card content: %w", err)
	}

	messageID, err := n.sender.SendMessage(ctx, n.receiveIDType, n.receiveID, "interactive", string(card))
	if err != nil {
		n.logger.Error("Failed to send session card",
			zap.String("audit_id", session.ID),
			zap.Error(err))
		return fmt.Errorf("failed to send card message: %w", err)
	}

	n.logger.Info("Session card sent",
		zap.String("audit_id", session.ID),
		zap.String("message_id", messageID))
	return nil
}

func buildCard(session *entity.AuditSession) map[string]interface{} {
	template, title := "green", "Claim audit completed"
	var elements []interface{}

	switch {
	case session.Status == entity.StatusFailed:
		template, title = "red", "Claim audit failed"
		reason := "unknown"
		if session.Failure != nil {
			reason = fmt.Sprintf("%s: %s", session.Failure.Kind, session.Failure.Reason)
		}
		elements = append(elements, markdown("**Reason**\n"+reason))
	case session.Summary != nil:
		if session.Summary.EligibilityBlocked {
			template, title = "red", "Claim audit completed: eligibility blocked"
		} else if session.Summary.AmountUnderReview > 0 {
			template, title = "orange", "Claim audit completed: charges under review"
		}
		elements = append(elements, map[string]interface{}{
			"tag": "div",
			"fields": []interface{}{
				shortField("Total billed", entity.FormatINR(session.Summary.TotalBilled)),
				shortField("Under review", entity.FormatINR(session.Summary.AmountUnderReview)),
				shortField("Fully covered", entity.FormatINR(session.Summary.FullyCoveredAmount)),
				shortField("Findings", fmt.Sprintf("%d", len(session.Flags))),
			},
		})
		if lines := findingLines(session.Flags, 5); lines != "" {
			elements = append(elements, map[string]interface{}{"tag": "hr"}, markdown(lines))
		}
	}

	elements = append(elements, map[string]interface{}{
		"tag": "note",
		"elements": []interface{}{
			map[string]interface{}{"tag": "plain_text", "content": "Audit " + session.ID},
		},
	})

	return map[string]interface{}{
		"config": map[string]interface{}{"wide_screen_mode": true},
		"header": map[string]interface{}{
			"template": template,
			"title":    map[string]interface{}{"tag": "plain_text", "content": title},
		},
		"elements": elements,
	}
}

func markdown(content string) map[string]interface{} {
	return map[string]interface{}{
		"tag":  "div",
		"text": map[string]interface{}{"tag": "lark_md", "content": content},
	}
}

func shortField(label, value string) map[string]interface{} {
	return map[string]interface{}{
		"is_short": true,
		"text":     map[string]interface{}{"tag": "lark_md", "content": fmt.Sprintf("**%s**\n%s", label, value)},
	}
}

// findingLines lists up to limit findings, most severe first in flag order
func findingLines(flags []entity.Flag, limit int) string {
	var lines []string
	for _, sev := range []entity.Severity{entity.SeverityError, entity.SeverityWarning, entity.SeverityInfo} {
		for _, f := range flags {
			if f.Severity != sev || len(lines) >= limit {
				continue
			}
			line := fmt.Sprintf("- [%s] %s", strings.ToUpper(string(f.Type)), f.Reason)
			if f.LineItemID != "" {
				line += fmt.Sprintf(" (%s)", f.LineItemID)
			}
			lines = append(lines, line)
		}
	}
	if rest := len(flags) - len(lines); rest > 0 {
		lines = append(lines, fmt.Sprintf("and %d more", rest))
	}
	return strings.Join(lines, "\n")
}

var _ port.SessionNotifier = (*Notifier)(nil)
