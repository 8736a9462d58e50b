package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/G1r1shCodes/BimaBot/internal/application/port"
	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
	"github.com/G1r1shCodes/BimaBot/internal/domain/finance"
	"github.com/G1r1shCodes/BimaBot/internal/domain/letter"
	domainwf "github.com/G1r1shCodes/BimaBot/internal/domain/workflow"
	"golang.org/x/sync/errgroup"
)

var stepMessages = map[string]string{
	entity.StepExtracting:  "Reading documents",
	entity.StepStructuring: "Extracting bill and policy details",
	entity.StepAuditing:    "Checking charges against policy and IRDAI rules",
	entity.StepReporting:   "Preparing dispute letter",
}

// runPipeline drives a processing session to completed or failed. It never
// panics and never returns with the session left in processing unless the
// store itself is unreachable. Uploaded documents are removed once the
// session is terminal.
func (c *auditCoordinator) runPipeline(ctx context.Context, session *entity.AuditSession) {
	defer c.removeDocuments(ctx, session)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Audit pipeline panicked", "audit_id", session.ID, "panic", r)
			c.fail(ctx, session.ID, entity.Failure{Kind: entity.FailureInternal, Reason: "internal error while auditing"})
		}
	}()

	result, err := c.process(ctx, session)
	if err != nil {
		if errors.Is(err, errPanicked) {
			c.logger.Error("Audit collaborator panicked", "audit_id", session.ID, "error", err)
		}
		c.fail(ctx, session.ID, classifyFailure(err))
		return
	}

	if err := c.succeed(ctx, session.ID, result); err != nil {
		c.logger.Error("Failed to persist audit result", "audit_id", session.ID, "error", err)
		c.fail(ctx, session.ID, entity.Failure{Kind: entity.FailureInternal, Reason: "failed to store audit result"})
	}
}

func (c *auditCoordinator) process(ctx context.Context, session *entity.AuditSession) (*port.AuditResult, error) {
	c.progress(ctx, session.ID, entity.StepExtracting)
	billText, policyText, err := c.extractDocuments(ctx, session)
	if err != nil {
		return nil, err
	}

	c.progress(ctx, session.ID, entity.StepStructuring)
	bill, policy, err := c.structureDocuments(ctx, billText, policyText)
	if err != nil {
		return nil, err
	}

	c.progress(ctx, session.ID, entity.StepAuditing)
	flags, err := c.deps.Rules.Evaluate(bill, policy)
	if err != nil {
		return nil, err
	}
	summary, err := finance.Aggregate(bill, flags)
	if err != nil {
		return nil, err
	}

	c.progress(ctx, session.ID, entity.StepReporting)
	disputeLetter, err := letter.Compose(bill, policy, flags)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Audit evaluated",
		"audit_id", session.ID,
		"flags", len(flags),
		"under_review", summary.AmountUnderReview,
		"blocked", summary.EligibilityBlocked)

	return &port.AuditResult{
		Bill:          bill,
		Policy:        policy,
		Flags:         flags,
		Summary:       summary,
		DisputeLetter: disputeLetter,
		CompletedAt:   c.now(),
	}, nil
}

// extractDocuments reads both documents concurrently. The first failure
// cancels the other call and its result is dropped.
func (c *auditCoordinator) extractDocuments(ctx context.Context, session *entity.AuditSession) (string, string, error) {
	var billText, policyText string

	g, gctx := errgroup.WithContext(ctx)
	goSafe(g, func() error {
		text, err := c.extractText(gctx, entity.DocumentBill, session.BillDocument)
		billText = text
		return err
	})
	goSafe(g, func() error {
		text, err := c.extractText(gctx, entity.DocumentPolicy, session.PolicyDocument)
		policyText = text
		return err
	})
	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return billText, policyText, nil
}

func (c *auditCoordinator) extractText(ctx context.Context, kind entity.DocumentKind, ref *entity.DocumentRef) (string, error) {
	var text string
	err := c.config.Retry.Do(ctx, "extractor", "extract "+string(kind), func(ctx context.Context) error {
		var err error
		text, err = c.deps.Extractor.ExtractText(ctx, ref)
		return err
	})
	if err != nil {
		return "", err
	}
	if len(text) == 0 {
		return "", fmt.Errorf("%s document: %w", kind, entity.ErrNoData)
	}
	return text, nil
}

func (c *auditCoordinator) structureDocuments(ctx context.Context, billText, policyText string) (*entity.Bill, *entity.PolicyTerms, error) {
	var (
		bill   *entity.Bill
		policy *entity.PolicyTerms
	)

	g, gctx := errgroup.WithContext(ctx)
	goSafe(g, func() error {
		return c.config.Retry.Do(gctx, "structurer", "structure bill", func(ctx context.Context) error {
			var err error
			bill, err = c.deps.Structurer.StructureBill(ctx, billText)
			return err
		})
	})
	goSafe(g, func() error {
		return c.config.Retry.Do(gctx, "structurer", "structure policy", func(ctx context.Context) error {
			var err error
			policy, err = c.deps.Structurer.StructurePolicy(ctx, policyText)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if bill == nil || len(bill.LineItems) == 0 {
		return nil, nil, errNoLineItems
	}
	if policy == nil {
		return nil, nil, &entity.ValidationError{Field: "policy", Reason: "no policy terms could be extracted"}
	}
	return bill, policy, nil
}

// goSafe runs fn on g and turns a panic into an error
func goSafe(g *errgroup.Group, fn func() error) {
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", errPanicked, r)
			}
		}()
		return fn()
	})
}

func (c *auditCoordinator) progress(ctx context.Context, sessionID, step string) {
	current := 0
	for i, s := range entity.ProgressSteps {
		if s == step {
			current = i + 1
		}
	}
	p := entity.Progress{
		Step:    step,
		Message: stepMessages[step],
		Current: current,
		Total:   len(entity.ProgressSteps),
	}
	if err := c.deps.SessionRepo.UpdateProgress(ctx, sessionID, p); err != nil {
		c.logger.Error("Failed to update progress", "audit_id", sessionID, "step", step, "error", err)
	}
}

// succeed stores the result and completes the session in one transaction
func (c *auditCoordinator) succeed(ctx context.Context, sessionID string, result *port.AuditResult) error {
	_, err := c.deps.Workflow.Transition(context.WithoutCancel(ctx), sessionID, domainwf.TriggerSucceed, func(txCtx context.Context) error {
		return c.deps.SessionRepo.SaveResult(txCtx, sessionID, result)
	})
	if err != nil {
		return err
	}
	c.logger.Info("Audit completed", "audit_id", sessionID)
	return nil
}

// fail records the failure and moves the session to failed. It runs detached
// from ctx so a cancelled run is still recorded.
func (c *auditCoordinator) fail(ctx context.Context, sessionID string, failure entity.Failure) {
	_, err := c.deps.Workflow.Transition(context.WithoutCancel(ctx), sessionID, domainwf.TriggerFail, func(txCtx context.Context) error {
		return c.deps.SessionRepo.SaveFailure(txCtx, sessionID, failure)
	})
	if err != nil {
		c.logger.Error("Failed to record audit failure", "audit_id", sessionID, "kind", failure.Kind, "error", err)
		return
	}
	c.logger.Info("Audit failed", "audit_id", sessionID, "kind", failure.Kind, "reason", failure.Reason)
}

// removeDocuments deletes the session's uploads. Errors are logged only.
func (c *auditCoordinator) removeDocuments(ctx context.Context, session *entity.AuditSession) {
	ctx = context.WithoutCancel(ctx)
	for _, doc := range []*entity.DocumentRef{session.BillDocument, session.PolicyDocument} {
		if doc == nil || doc.Path == "" {
			continue
		}
		if err := c.deps.Storage.Delete(ctx, doc.Path); err != nil {
			c.logger.Error("Failed to remove uploaded document", "audit_id", session.ID, "path", doc.Path, "error", err)
		}
	}
}

// classifyFailure maps a pipeline error to the failure recorded on the session
func classifyFailure(err error) entity.Failure {
	var (
		ve *entity.ValidationError
		ce *entity.CollaboratorError
		ae *entity.AggregationError
	)

	switch {
	case errors.As(err, &ve):
		return entity.Failure{Kind: entity.FailureValidation, Reason: ve.Error()}
	case errors.Is(err, entity.ErrNoData):
		return entity.Failure{Kind: entity.FailureNoData, Reason: err.Error()}
	case errors.Is(err, errNoLineItems):
		return entity.Failure{Kind: entity.FailureExtraction, Reason: err.Error()}
	case errors.As(err, &ce):
		return entity.Failure{Kind: entity.FailureCollaborator, Reason: ce.Error()}
	case errors.As(err, &ae):
		return entity.Failure{Kind: entity.FailureInternal, Reason: ae.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return entity.Failure{Kind: entity.FailureCollaborator, Reason: "audit was cancelled before documents were processed"}
	default:
		return entity.Failure{Kind: entity.FailureInternal, Reason: "internal error while auditing"}
	}
}
