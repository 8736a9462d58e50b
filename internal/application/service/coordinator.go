package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/G1r1shCodes/BimaBot/internal/application/dispatcher"
	"github.com/G1r1shCodes/BimaBot/internal/application/port"
	"github.com/G1r1shCodes/BimaBot/internal/application/workflow"
	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
	"github.com/G1r1shCodes/BimaBot/internal/domain/event"
	"github.com/G1r1shCodes/BimaBot/internal/domain/rules"
	domainwf "github.com/G1r1shCodes/BimaBot/internal/domain/workflow"
	"github.com/google/uuid"
)

// DefaultMaxUploadBytes caps a single uploaded document
const DefaultMaxUploadBytes = 10 << 20

// SessionStatus is the non-blocking view returned to pollers
type SessionStatus struct {
	AuditID        string          `json:"audit_id"`
	Status         string          `json:"status"`
	BillUploaded   bool            `json:"bill_uploaded"`
	PolicyUploaded bool            `json:"policy_uploaded"`
	Progress       entity.Progress `json:"progress"`
	Error          string          `json:"error,omitempty"`
}

// AttachResult acknowledges which documents a session now holds
type AttachResult struct {
	AuditID        string `json:"audit_id"`
	BillUploaded   bool   `json:"bill_uploaded"`
	PolicyUploaded bool   `json:"policy_uploaded"`
}

// AuditCoordinator owns the audit session lifecycle
type AuditCoordinator interface {
	// Start creates a session in the created state
	Start(ctx context.Context) (*entity.AuditSession, error)

	// Upload stores a PDF document and attaches it to the session
	Upload(ctx context.Context, sessionID string, kind entity.DocumentKind, filename string, content []byte) (*AttachResult, error)

	// AttachDocument records an already stored document reference
	AttachDocument(ctx context.Context, sessionID string, kind entity.DocumentKind, ref *entity.DocumentRef) (*AttachResult, error)

	// Complete starts processing. Repeated calls return the current status
	// without starting a second run. ErrSessionBusy means a document upload
	// is in flight and nothing was scheduled.
	Complete(ctx context.Context, sessionID string) (string, error)

	// Status returns the current snapshot without waiting on processing
	Status(ctx context.Context, sessionID string) (*SessionStatus, error)

	// Result returns the completed session, ErrResultNotReady, or a
	// *SessionFailedError
	Result(ctx context.Context, sessionID string) (*entity.AuditSession, error)

	// List returns sessions newest first
	List(ctx context.Context, limit, offset int) ([]*entity.AuditSession, error)

	// RecoverInterrupted fails sessions a previous process left processing
	// and returns how many it moved
	RecoverInterrupted(ctx context.Context) (int, error)
}

// CoordinatorDeps groups the collaborators a coordinator drives
type CoordinatorDeps struct {
	SessionRepo port.SessionRepository
	Workflow    workflow.SessionWorkflow
	Pool        port.JobPool
	Storage     port.FileStorage
	Extractor   port.DocumentExtractor
	Structurer  port.FieldStructurer
	Rules       *rules.Engine
	Dispatcher  dispatcher.Dispatcher
}

// CoordinatorConfig holds coordinator limits
type CoordinatorConfig struct {
	MaxUploadBytes int64
	Retry          RetryPolicy
}

type auditCoordinator struct {
	deps   CoordinatorDeps
	config CoordinatorConfig
	guard  *sessionGuard
	logger Logger
	now    func() time.Time
	newID  func() string
}

// NewAuditCoordinator creates a new AuditCoordinator
func NewAuditCoordinator(deps CoordinatorDeps, config CoordinatorConfig, logger Logger) AuditCoordinator {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = DefaultRetryPolicy()
	}
	if deps.Rules == nil {
		deps.Rules = rules.New()
	}
	return &auditCoordinator{
		deps:   deps,
		config: config,
		guard:  newSessionGuard(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  newSessionID,
	}
}

// newSessionID returns ids of the form AUD-1A2B3C4D
func newSessionID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "AUD-" + strings.ToUpper(raw[:8])
}

func (c *auditCoordinator) Start(ctx context.Context) (*entity.AuditSession, error) {
	now := c.now()
	session := &entity.AuditSession{
		ID:        c.newID(),
		Status:    entity.StatusCreated,
		Flags:     []entity.Flag{},
		Progress:  entity.Progress{Total: len(entity.ProgressSteps)},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.deps.SessionRepo.Create(ctx, session); err != nil {
		c.logger.Error("Failed to create session", "error", err)
		return nil, fmt.Errorf("create session: %w", err)
	}

	c.logger.Info("Audit session started", "audit_id", session.ID)
	c.publish(ctx, event.NewEvent(event.TypeSessionCreated, session.ID, nil))
	return session, nil
}

func (c *auditCoordinator) Upload(ctx context.Context, sessionID string, kind entity.DocumentKind, filename string, content []byte) (*AttachResult, error) {
	if err := c.validateUpload(kind, filename, content); err != nil {
		return nil, err
	}

	if _, ok := c.guard.TryAcquire(sessionID, holdAttach); !ok {
		return nil, ErrSessionBusy
	}
	defer c.guard.Release(sessionID)

	if _, err := c.attachable(ctx, sessionID); err != nil {
		return nil, err
	}

	relPath := path.Join(sessionID, string(kind)+".pdf")
	if err := c.deps.Storage.Save(ctx, relPath, content); err != nil {
		c.logger.Error("Failed to store document", "audit_id", sessionID, "kind", kind, "error", err)
		return nil, fmt.Errorf("store %s document: %w", kind, err)
	}

	ref := &entity.DocumentRef{
		Path:       relPath,
		Filename:   filename,
		Size:       int64(len(content)),
		UploadedAt: c.now(),
	}
	return c.attach(ctx, sessionID, kind, ref)
}

func (c *auditCoordinator) AttachDocument(ctx context.Context, sessionID string, kind entity.DocumentKind, ref *entity.DocumentRef) (*AttachResult, error) {
	if !kind.IsValid() {
		return nil, &entity.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown document kind %q", kind)}
	}
	if ref == nil || ref.Path == "" {
		return nil, &entity.ValidationError{Field: string(kind), Reason: "document reference is required"}
	}

	if _, ok := c.guard.TryAcquire(sessionID, holdAttach); !ok {
		return nil, ErrSessionBusy
	}
	defer c.guard.Release(sessionID)

	if _, err := c.attachable(ctx, sessionID); err != nil {
		return nil, err
	}
	doc := *ref
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = c.now()
	}
	return c.attach(ctx, sessionID, kind, &doc)
}

func (c *auditCoordinator) validateUpload(kind entity.DocumentKind, filename string, content []byte) error {
	field := string(kind)
	switch {
	case !kind.IsValid():
		return &entity.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown document kind %q", kind)}
	case !strings.EqualFold(path.Ext(filename), ".pdf"):
		return &entity.ValidationError{Field: field, Reason: "only PDF files are accepted"}
	case len(content) == 0:
		return &entity.ValidationError{Field: field, Reason: "file is empty"}
	case int64(len(content)) > c.config.MaxUploadBytes:
		return &entity.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("file exceeds %d MB limit", c.config.MaxUploadBytes>>20),
		}
	}
	return nil
}

// attachable loads the session and checks it still accepts documents
func (c *auditCoordinator) attachable(ctx context.Context, sessionID string) (*entity.AuditSession, error) {
	session, err := c.get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case entity.StatusCreated:
		return session, nil
	case entity.StatusProcessing:
		return nil, ErrSessionBusy
	default:
		return nil, &entity.PreconditionError{Reason: "documents cannot be changed after the audit has " + session.Status}
	}
}

func (c *auditCoordinator) attach(ctx context.Context, sessionID string, kind entity.DocumentKind, ref *entity.DocumentRef) (*AttachResult, error) {
	if err := c.deps.SessionRepo.AttachDocument(ctx, sessionID, kind, ref); err != nil {
		return nil, fmt.Errorf("attach %s document: %w", kind, err)
	}

	session, err := c.get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Document attached", "audit_id", sessionID, "kind", kind, "size", ref.Size)
	c.publish(ctx, event.NewEvent(event.TypeDocumentAttached, sessionID, map[string]interface{}{
		event.KeyDocumentKind: string(kind),
	}))

	return &AttachResult{
		AuditID:        sessionID,
		BillUploaded:   session.BillUploaded(),
		PolicyUploaded: session.PolicyUploaded(),
	}, nil
}

func (c *auditCoordinator) Complete(ctx context.Context, sessionID string) (string, error) {
	session, err := c.get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if session.Status != entity.StatusCreated {
		return session.Status, nil
	}

	if holder, ok := c.guard.TryAcquire(sessionID, holdComplete); !ok {
		return c.heldStatus(ctx, sessionID, holder)
	}
	handedOff := false
	defer func() {
		if !handedOff {
			c.guard.Release(sessionID)
		}
	}()

	// re-read under the guard; a finished run may have released it
	session, err = c.get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if session.Status != entity.StatusCreated {
		return session.Status, nil
	}
	slot, ok := c.deps.Pool.Reserve()
	if !ok {
		c.logger.Info("Audit capacity exceeded", "audit_id", sessionID)
		return entity.StatusCreated, ErrCapacityExceeded
	}

	state, err := c.deps.Workflow.Transition(ctx, sessionID, domainwf.TriggerComplete, nil)
	if err != nil {
		slot.Cancel()
		if errors.Is(err, entity.ErrStatusConflict) {
			return c.currentStatus(ctx, sessionID)
		}
		return "", err
	}

	handedOff = true
	snapshot := session.Clone()
	slot.Run(func(jobCtx context.Context) {
		defer c.guard.Release(sessionID)
		c.runPipeline(jobCtx, snapshot)
	})

	c.logger.Info("Audit processing queued", "audit_id", sessionID)
	return state.String(), nil
}

func (c *auditCoordinator) Status(ctx context.Context, sessionID string) (*SessionStatus, error) {
	session, err := c.get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	status := &SessionStatus{
		AuditID:        session.ID,
		Status:         session.Status,
		BillUploaded:   session.BillUploaded(),
		PolicyUploaded: session.PolicyUploaded(),
		Progress:       session.Progress,
	}
	if session.Status == entity.StatusFailed && session.Failure != nil {
		status.Error = session.Failure.Reason
	}
	return status, nil
}

func (c *auditCoordinator) Result(ctx context.Context, sessionID string) (*entity.AuditSession, error) {
	session, err := c.get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case entity.StatusCompleted:
		return session, nil
	case entity.StatusFailed:
		failed := &SessionFailedError{Kind: entity.FailureInternal, Reason: "audit failed"}
		if session.Failure != nil {
			failed.Kind = session.Failure.Kind
			failed.Reason = session.Failure.Reason
		}
		return nil, failed
	default:
		return nil, ErrResultNotReady
	}
}

func (c *auditCoordinator) List(ctx context.Context, limit, offset int) ([]*entity.AuditSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	sessions, err := c.deps.SessionRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// interruptedReason is recorded on sessions whose run did not survive a restart
const interruptedReason = "audit interrupted"

func (c *auditCoordinator) RecoverInterrupted(ctx context.Context) (int, error) {
	sessions, err := c.deps.SessionRepo.ListByStatus(ctx, entity.StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("list interrupted sessions: %w", err)
	}

	recovered := 0
	for _, session := range sessions {
		// a run owned by this process is still live
		if c.guard.Held(session.ID) {
			continue
		}
		failure := entity.Failure{Kind: entity.FailureInternal, Reason: interruptedReason}
		_, err := c.deps.Workflow.Transition(ctx, session.ID, domainwf.TriggerFail, func(txCtx context.Context) error {
			return c.deps.SessionRepo.SaveFailure(txCtx, session.ID, failure)
		})
		if err != nil {
			c.logger.Error("Failed to recover interrupted audit", "audit_id", session.ID, "error", err)
			continue
		}
		c.removeDocuments(ctx, session)
		c.logger.Info("Interrupted audit marked failed", "audit_id", session.ID)
		recovered++
	}
	return recovered, nil
}

func (c *auditCoordinator) get(ctx context.Context, sessionID string) (*entity.AuditSession, error) {
	session, err := c.deps.SessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, entity.ErrSessionNotFound
	}
	return session, nil
}

// heldStatus answers a Complete that found the guard taken. Another
// completion owns the run, so its status is reported. A document change in
// flight means nothing was scheduled and the caller must retry.
func (c *auditCoordinator) heldStatus(ctx context.Context, sessionID, holder string) (string, error) {
	status, err := c.currentStatus(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if holder == holdAttach && status == entity.StatusCreated {
		return status, ErrSessionBusy
	}
	return status, nil
}

func (c *auditCoordinator) currentStatus(ctx context.Context, sessionID string) (string, error) {
	session, err := c.get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return session.Status, nil
}

func (c *auditCoordinator) publish(ctx context.Context, evt *event.Event) {
	if c.deps.Dispatcher != nil {
		c.deps.Dispatcher.DispatchAsync(ctx, evt)
	}
}
