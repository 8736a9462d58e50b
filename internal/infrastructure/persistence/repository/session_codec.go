package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

// sessionRow holds the JSON-encoded columns of a session
type sessionRow struct {
	billDocument   sql.NullString
	policyDocument sql.NullString
	bill           sql.NullString
	policy         sql.NullString
	flags          string
	summary        sql.NullString
	progress       string
	failure        sql.NullString
}

func toRow(s *entity.AuditSession) (*sessionRow, error) {
	var (
		row sessionRow
		err error
	)

	if row.billDocument, err = marshalNullable(s.BillDocument); err != nil {
		return nil, err
	}
	if row.policyDocument, err = marshalNullable(s.PolicyDocument); err != nil {
		return nil, err
	}
	if row.bill, err = marshalNullable(s.Bill); err != nil {
		return nil, err
	}
	if row.policy, err = marshalNullable(s.Policy); err != nil {
		return nil, err
	}
	if row.summary, err = marshalNullable(s.Summary); err != nil {
		return nil, err
	}
	if row.failure, err = marshalNullable(s.Failure); err != nil {
		return nil, err
	}

	flags := s.Flags
	if flags == nil {
		flags = []entity.Flag{}
	}
	data, err := json.Marshal(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal flags: %w", err)
	}
	row.flags = string(data)

	data, err = json.Marshal(s.Progress)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal progress: %w", err)
	}
	row.progress = string(data)

	return &row, nil
}

// marshalNullable encodes v as JSON, or NULL when v is a nil pointer
func marshalNullable[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalNullable[T any](src sql.NullString) (*T, error) {
	if !src.Valid || src.String == "" {
		return nil, nil
	}
	v := new(T)
	if err := json.Unmarshal([]byte(src.String), v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %T: %w", v, err)
	}
	return v, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(scanner rowScanner) (*entity.AuditSession, error) {
	var (
		s         entity.AuditSession
		row       sessionRow
		completed sql.NullTime
	)

	err := scanner.Scan(
		&s.ID,
		&s.Status,
		&row.billDocument,
		&row.policyDocument,
		&row.bill,
		&row.policy,
		&row.flags,
		&row.summary,
		&s.DisputeLetter,
		&row.progress,
		&row.failure,
		&s.CreatedAt,
		&s.UpdatedAt,
		&completed,
	)
	if err != nil {
		return nil, err
	}

	if s.BillDocument, err = unmarshalNullable[entity.DocumentRef](row.billDocument); err != nil {
		return nil, err
	}
	if s.PolicyDocument, err = unmarshalNullable[entity.DocumentRef](row.policyDocument); err != nil {
		return nil, err
	}
	if s.Bill, err = unmarshalNullable[entity.Bill](row.bill); err != nil {
		return nil, err
	}
	if s.Policy, err = unmarshalNullable[entity.PolicyTerms](row.policy); err != nil {
		return nil, err
	}
	if s.Summary, err = unmarshalNullable[entity.FinancialSummary](row.summary); err != nil {
		return nil, err
	}
	if s.Failure, err = unmarshalNullable[entity.Failure](row.failure); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(row.flags), &s.Flags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flags: %w", err)
	}
	if s.Flags == nil {
		s.Flags = []entity.Flag{}
	}
	if row.progress != "" {
		if err := json.Unmarshal([]byte(row.progress), &s.Progress); err != nil {
			return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
		}
	}

	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	if completed.Valid {
		t := completed.Time.UTC()
		s.CompletedAt = &t
	}
	return &s, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
