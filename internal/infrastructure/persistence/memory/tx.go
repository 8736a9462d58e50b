package memory

import (
	"context"
	"fmt"

	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

type txKey struct{}

// txState stages every session written in a transaction. Staged copies are
// visible only through the transaction's context until commit publishes them.
type txState struct {
	staged map[string]*entity.AuditSession
}

func txFrom(ctx context.Context) (*txState, bool) {
	tx, ok := ctx.Value(txKey{}).(*txState)
	return tx, ok
}

// WithTransaction serialises transactions. Writes made through the returned
// context are published together when fn succeeds and discarded when it fails
// or panics. Nested calls join the outer transaction.
func (r *SessionRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, nested := txFrom(ctx); nested {
		return fn(ctx)
	}

	r.txMu.Lock()
	defer r.txMu.Unlock()

	tx := &txState{staged: make(map[string]*entity.AuditSession)}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("transaction panic: %v", p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	r.commit(tx)
	return nil
}

func (r *SessionRepository) commit(tx *txState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range tx.staged {
		r.sessions[id] = s
	}
}
