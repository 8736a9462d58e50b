package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/G1r1shCodes/BimaBot/internal/application/port"
	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
	"github.com/G1r1shCodes/BimaBot/internal/infrastructure/persistence/sqlite"
)

// SessionRepository implements port.SessionRepository on SQLite. Structured
// fields are stored as JSON text.
type SessionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sql.DB, logger *zap.Logger) port.SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

const sessionColumns = `
	id, status, bill_document, policy_document, bill, policy, flags, summary,
	dispute_letter, progress, failure, created_at, updated_at, completed_at
`

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, session *entity.AuditSession) error {
	row, err := toRow(session)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		session.ID,
		session.Status,
		row.billDocument,
		row.policyDocument,
		row.bill,
		row.policy,
		row.flags,
		row.summary,
		session.DisputeLetter,
		row.progress,
		row.failure,
		session.CreatedAt.UTC(),
		session.UpdatedAt.UTC(),
		nullTime(session.CompletedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create session", zap.String("audit_id", session.ID), zap.Error(err))
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session, or nil when it does not exist
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*entity.AuditSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM audit_sessions WHERE id = ?`

	session, err := scanSession(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get session", zap.String("audit_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// AttachDocument stores a document reference in the bill or policy slot
func (r *SessionRepository) AttachDocument(ctx context.Context, id string, kind entity.DocumentKind, ref *entity.DocumentRef) error {
	var column string
	switch kind {
	case entity.DocumentBill:
		column = "bill_document"
	case entity.DocumentPolicy:
		column = "policy_document"
	default:
		return fmt.Errorf("unknown document kind %q", kind)
	}

	doc, err := marshalNullable(ref)
	if err != nil {
		return err
	}

	query := `UPDATE audit_sessions SET ` + column + ` = ?, updated_at = ? WHERE id = ?`
	return r.update(ctx, id, query, doc, time.Now().UTC(), id)
}

// UpdateStatus moves a session from one status to another
func (r *SessionRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	query := `UPDATE audit_sessions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		r.logger.Error("Failed to update session status", zap.String("audit_id", id), zap.Error(err))
		return fmt.Errorf("failed to update session status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return entity.ErrSessionNotFound
	}
	return entity.ErrStatusConflict
}

// UpdateProgress records the coarse progress indicator
func (r *SessionRepository) UpdateProgress(ctx context.Context, id string, progress entity.Progress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	query := `UPDATE audit_sessions SET progress = ?, updated_at = ? WHERE id = ?`
	return r.update(ctx, id, query, string(data), time.Now().UTC(), id)
}

// SaveResult stores every result field in a single statement
func (r *SessionRepository) SaveResult(ctx context.Context, id string, result *port.AuditResult) error {
	row, err := toRow(&entity.AuditSession{
		Bill:    result.Bill,
		Policy:  result.Policy,
		Flags:   result.Flags,
		Summary: &result.Summary,
	})
	if err != nil {
		return err
	}

	query := `
		UPDATE audit_sessions
		SET bill = ?, policy = ?, flags = ?, summary = ?, dispute_letter = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ?
	`
	completed := result.CompletedAt.UTC()
	return r.update(ctx, id, query,
		row.bill,
		row.policy,
		row.flags,
		row.summary,
		result.DisputeLetter,
		completed,
		completed,
		id,
	)
}

// SaveFailure stores the terminal failure
func (r *SessionRepository) SaveFailure(ctx context.Context, id string, failure entity.Failure) error {
	data, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("failed to marshal failure: %w", err)
	}

	query := `UPDATE audit_sessions SET failure = ?, updated_at = ? WHERE id = ?`
	return r.update(ctx, id, query, string(data), time.Now().UTC(), id)
}

// List returns sessions newest first
func (r *SessionRepository) List(ctx context.Context, limit, offset int) ([]*entity.AuditSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM audit_sessions ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	return r.query(ctx, query, limit, offset)
}

// ListByStatus returns every session in status, oldest first
func (r *SessionRepository) ListByStatus(ctx context.Context, status string) ([]*entity.AuditSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM audit_sessions WHERE status = ? ORDER BY created_at, id`
	return r.query(ctx, query, status)
}

func (r *SessionRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.AuditSession, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list sessions", zap.Error(err))
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*entity.AuditSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) update(ctx context.Context, id, query string, args ...interface{}) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update session", zap.String("audit_id", id), zap.Error(err))
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return entity.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, `SELECT 1 FROM audit_sessions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return true, nil
}

// Verify interface compliance
var _ port.SessionRepository = (*SessionRepository)(nil)
