package port

import (
	"context"
	"time"

	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

// AuditResult is everything a successful pipeline run persists
type AuditResult struct {
	Bill          *entity.Bill
	Policy        *entity.PolicyTerms
	Flags         []entity.Flag
	Summary       entity.FinancialSummary
	DisputeLetter string
	CompletedAt   time.Time
}

// SessionRepository is durable keyed storage for audit sessions.
//
// GetByID returns nil, nil when no session exists. Mutating methods return
// entity.ErrSessionNotFound for unknown ids. Implementations must honour a
// transaction carried in ctx by their TransactionManager.
type SessionRepository interface {
	// Create stores a new session
	Create(ctx context.Context, session *entity.AuditSession) error

	// GetByID returns a snapshot of the session
	GetByID(ctx context.Context, id string) (*entity.AuditSession, error)

	// AttachDocument records an uploaded document reference
	AttachDocument(ctx context.Context, id string, kind entity.DocumentKind, ref *entity.DocumentRef) error

	// UpdateStatus moves the session from one status to another and returns
	// entity.ErrStatusConflict if the stored status is not from
	UpdateStatus(ctx context.Context, id, from, to string) error

	// UpdateProgress records the coarse progress indicator
	UpdateProgress(ctx context.Context, id string, progress entity.Progress) error

	// SaveResult stores the audit outcome
	SaveResult(ctx context.Context, id string, result *AuditResult) error

	// SaveFailure stores the terminal failure reason
	SaveFailure(ctx context.Context, id string, failure entity.Failure) error

	// List returns sessions newest first
	List(ctx context.Context, limit, offset int) ([]*entity.AuditSession, error)

	// ListByStatus returns every session in status, oldest first
	ListByStatus(ctx context.Context, status string) ([]*entity.AuditSession, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
