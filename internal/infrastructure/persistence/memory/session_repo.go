// Package memory provides an in-process session store for tests and single-node use.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/G1r1shCodes/BimaBot/internal/application/port"
	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

// SessionRepository keeps sessions in a map. Every read and write copies the
// session so callers never alias stored state. Reads outside a transaction
// see only committed sessions.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entity.AuditSession
	txMu     sync.Mutex
}

// NewSessionRepository creates an empty store
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]*entity.AuditSession)}
}

func (r *SessionRepository) Create(ctx context.Context, session *entity.AuditSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.lookup(ctx, session.ID); exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	r.store(ctx, session.ID, session.Clone())
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*entity.AuditSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.lookup(ctx, id)
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

// lookup returns the session as seen from ctx; r.mu must be held
func (r *SessionRepository) lookup(ctx context.Context, id string) (*entity.AuditSession, bool) {
	if tx, ok := txFrom(ctx); ok {
		if s, staged := tx.staged[id]; staged {
			return s, true
		}
	}
	s, ok := r.sessions[id]
	return s, ok
}

// store writes s to the transaction in ctx, or directly when there is none;
// r.mu must be held
func (r *SessionRepository) store(ctx context.Context, id string, s *entity.AuditSession) {
	if tx, ok := txFrom(ctx); ok {
		tx.staged[id] = s
		return
	}
	r.sessions[id] = s
}

// mutate applies fn to the stored session under the write lock
func (r *SessionRepository) mutate(ctx context.Context, id string, fn func(s *entity.AuditSession) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.lookup(ctx, id)
	if !ok {
		return entity.ErrSessionNotFound
	}
	updated := s.Clone()
	if err := fn(updated); err != nil {
		return err
	}
	r.store(ctx, id, updated)
	return nil
}

func (r *SessionRepository) AttachDocument(ctx context.Context, id string, kind entity.DocumentKind, ref *entity.DocumentRef) error {
	return r.mutate(ctx, id, func(s *entity.AuditSession) error {
		doc := *ref
		switch kind {
		case entity.DocumentBill:
			s.BillDocument = &doc
		case entity.DocumentPolicy:
			s.PolicyDocument = &doc
		default:
			return fmt.Errorf("unknown document kind %q", kind)
		}
		s.UpdatedAt = doc.UploadedAt
		return nil
	})
}

func (r *SessionRepository) UpdateStatus(ctx context.Context, id, from, to string) error {
	return r.mutate(ctx, id, func(s *entity.AuditSession) error {
		if s.Status != from {
			return entity.ErrStatusConflict
		}
		s.Status = to
		return nil
	})
}

func (r *SessionRepository) UpdateProgress(ctx context.Context, id string, progress entity.Progress) error {
	return r.mutate(ctx, id, func(s *entity.AuditSession) error {
		s.Progress = progress
		return nil
	})
}

func (r *SessionRepository) SaveResult(ctx context.Context, id string, result *port.AuditResult) error {
	return r.mutate(ctx, id, func(s *entity.AuditSession) error {
		s.Bill = result.Bill.Clone()
		s.Policy = result.Policy.Clone()
		s.Flags = entity.CloneFlags(result.Flags)
		summary := result.Summary
		s.Summary = &summary
		s.DisputeLetter = result.DisputeLetter
		completed := result.CompletedAt
		s.CompletedAt = &completed
		s.UpdatedAt = completed
		return nil
	})
}

func (r *SessionRepository) SaveFailure(ctx context.Context, id string, failure entity.Failure) error {
	return r.mutate(ctx, id, func(s *entity.AuditSession) error {
		f := failure
		s.Failure = &f
		return nil
	})
}

func (r *SessionRepository) List(ctx context.Context, limit, offset int) ([]*entity.AuditSession, error) {
	r.mu.RLock()
	all := make([]*entity.AuditSession, 0, len(r.sessions))
	for id := range r.sessions {
		s, _ := r.lookup(ctx, id)
		all = append(all, s)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []*entity.AuditSession{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]*entity.AuditSession, 0, end-offset)
	for _, s := range all[offset:end] {
		out = append(out, s.Clone())
	}
	return out, nil
}

func (r *SessionRepository) ListByStatus(ctx context.Context, status string) ([]*entity.AuditSession, error) {
	r.mu.RLock()
	matched := make([]*entity.AuditSession, 0)
	for id := range r.sessions {
		s, _ := r.lookup(ctx, id)
		if s.Status == status {
			matched = append(matched, s.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
