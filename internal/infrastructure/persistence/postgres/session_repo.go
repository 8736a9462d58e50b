package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/G1r1shCodes/BimaBot/internal/application/port"
	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

// SessionRepository implements port.SessionRepository with JSONB columns
type SessionRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(pool *pgxpool.Pool, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{pool: pool, logger: logger}
}

const sessionColumns = `id, status, bill_document, policy_document, bill, policy, flags, summary,
	dispute_letter, progress, failure, created_at, updated_at, completed_at`

func (r *SessionRepository) Create(ctx context.Context, session *entity.AuditSession) error {
	flags := session.Flags
	if flags == nil {
		flags = []entity.Flag{}
	}

	args, err := jsonArgs(session.BillDocument, session.PolicyDocument, session.Bill, session.Policy, flags, session.Summary, session.Progress, session.Failure)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = querierFrom(ctx, r.pool).Exec(ctx, query,
		session.ID, session.Status,
		args[0], args[1], args[2], args[3], args[4], args[5],
		session.DisputeLetter,
		args[6], args[7],
		session.CreatedAt, session.UpdatedAt, session.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create session", zap.String("audit_id", session.ID), zap.Error(err))
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*entity.AuditSession, error) {
	row := querierFrom(ctx, r.pool).QueryRow(ctx, `SELECT `+sessionColumns+` FROM audit_sessions WHERE id = $1`, id)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get session", zap.String("audit_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) AttachDocument(ctx context.Context, id string, kind entity.DocumentKind, ref *entity.DocumentRef) error {
	column := "bill_document"
	switch kind {
	case entity.DocumentBill:
	case entity.DocumentPolicy:
		column = "policy_document"
	default:
		return fmt.Errorf("unknown document kind %q", kind)
	}

	doc, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	return r.update(ctx, id, `UPDATE audit_sessions SET `+column+` = $1, updated_at = now() WHERE id = $2`, doc, id)
}

func (r *SessionRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	q := querierFrom(ctx, r.pool)
	tag, err := q.Exec(ctx, `UPDATE audit_sessions SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		r.logger.Error("Failed to update session status", zap.String("audit_id", id), zap.Error(err))
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM audit_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if !exists {
		return entity.ErrSessionNotFound
	}
	return entity.ErrStatusConflict
}

func (r *SessionRepository) UpdateProgress(ctx context.Context, id string, progress entity.Progress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	return r.update(ctx, id, `UPDATE audit_sessions SET progress = $1, updated_at = now() WHERE id = $2`, data, id)
}

func (r *SessionRepository) SaveResult(ctx context.Context, id string, result *port.AuditResult) error {
	flags := result.Flags
	if flags == nil {
		flags = []entity.Flag{}
	}
	args, err := jsonArgs(result.Bill, result.Policy, flags, result.Summary)
	if err != nil {
		return err
	}

	query := `UPDATE audit_sessions
		SET bill = $1, policy = $2, flags = $3, summary = $4, dispute_letter = $5,
			completed_at = $6, updated_at = $6
		WHERE id = $7`
	return r.update(ctx, id, query, args[0], args[1], args[2], args[3], result.DisputeLetter, result.CompletedAt, id)
}

func (r *SessionRepository) SaveFailure(ctx context.Context, id string, failure entity.Failure) error {
	data, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("failed to marshal failure: %w", err)
	}
	return r.update(ctx, id, `UPDATE audit_sessions SET failure = $1, updated_at = now() WHERE id = $2`, data, id)
}

func (r *SessionRepository) List(ctx context.Context, limit, offset int) ([]*entity.AuditSession, error) {
	return r.query(ctx,
		`SELECT `+sessionColumns+` FROM audit_sessions ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, offset)
}

func (r *SessionRepository) ListByStatus(ctx context.Context, status string) ([]*entity.AuditSession, error) {
	return r.query(ctx,
		`SELECT `+sessionColumns+` FROM audit_sessions WHERE status = $1 ORDER BY created_at, id`,
		status)
}

func (r *SessionRepository) query(ctx context.Context, query string, args ...any) ([]*entity.AuditSession, error) {
	rows, err := querierFrom(ctx, r.pool).Query(ctx, query, args...)
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

func (r *SessionRepository) update(ctx context.Context, id, query string, args ...any) error {
	tag, err := querierFrom(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update session", zap.String("audit_id", id), zap.Error(err))
		return fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrSessionNotFound
	}
	return nil
}

// jsonArgs encodes each value for a JSONB parameter. Nil pointers become NULL.
func jsonArgs(values ...any) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		if isNilPointer(v) {
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
		}
		out[i] = data
	}
	return out, nil
}

func isNilPointer(v any) bool {
	switch p := v.(type) {
	case nil:
		return true
	case *entity.DocumentRef:
		return p == nil
	case *entity.Bill:
		return p == nil
	case *entity.PolicyTerms:
		return p == nil
	case *entity.FinancialSummary:
		return p == nil
	case *entity.Failure:
		return p == nil
	}
	return false
}

func scanSession(row pgx.Row) (*entity.AuditSession, error) {
	var (
		s                                 entity.AuditSession
		billDoc, policyDoc, bill, policy  []byte
		flags, summary, progress, failure []byte
		createdAt, updatedAt              time.Time
		completedAt                       *time.Time
	)

	err := row.Scan(&s.ID, &s.Status, &billDoc, &policyDoc, &bill, &policy, &flags, &summary,
		&s.DisputeLetter, &progress, &failure, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	targets := []struct {
		data []byte
		dest any
	}{
		{flags, &s.Flags},
		{progress, &s.Progress},
	}
	for _, t := range targets {
		if len(t.data) == 0 {
			continue
		}
		if err := json.Unmarshal(t.data, t.dest); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session column: %w", err)
		}
	}

	if s.BillDocument, err = decode[entity.DocumentRef](billDoc); err != nil {
		return nil, err
	}
	if s.PolicyDocument, err = decode[entity.DocumentRef](policyDoc); err != nil {
		return nil, err
	}
	if s.Bill, err = decode[entity.Bill](bill); err != nil {
		return nil, err
	}
	if s.Policy, err = decode[entity.PolicyTerms](policy); err != nil {
		return nil, err
	}
	if s.Summary, err = decode[entity.FinancialSummary](summary); err != nil {
		return nil, err
	}
	if s.Failure, err = decode[entity.Failure](failure); err != nil {
		return nil, err
	}

	if s.Flags == nil {
		s.Flags = []entity.Flag{}
	}
	s.CreatedAt = createdAt.UTC()
	s.UpdatedAt = updatedAt.UTC()
	if completedAt != nil {
		t := completedAt.UTC()
		s.CompletedAt = &t
	}
	return &s, nil
}

func decode[T any](data []byte) (*T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %T: %w", v, err)
	}
	return v, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
