package service

import (
	"context"
	"errors"
	"time"

	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
)

// RetryPolicy bounds collaborator calls. Every attempt gets its own timeout and
// only transient collaborator errors are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		AttemptTimeout: 60 * time.Second,
	}
}

// Do runs fn until it succeeds, fails permanently, or attempts run out.
// Attempt timeouts are reported as transient errors for collaborator.
func (p RetryPolicy) Do(ctx context.Context, collaborator, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.InitialBackoff

	for attempt := 1; ; attempt++ {
		err := p.attempt(ctx, collaborator, op, fn)
		if err == nil || !entity.IsTransient(err) || attempt >= attempts {
			return err
		}

		if serr := sleepWithCtx(ctx, backoff); serr != nil {
			return err
		}
		backoff *= 2
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
}

func (p RetryPolicy) attempt(ctx context.Context, collaborator, op string, fn func(ctx context.Context) error) error {
	attemptCtx := ctx
	if p.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		defer cancel()
	}

	err := fn(attemptCtx)
	if err == nil {
		return nil
	}

	var ce *entity.CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	// deadline hit on this attempt only, parent still live
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return &entity.CollaboratorError{Collaborator: collaborator, Op: op, Transient: true, Err: err}
	}
	return err
}

// sleepWithCtx waits for d or until ctx is done
func sleepWithCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
