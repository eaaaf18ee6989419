package services

import (
	"context"
	"errors"
	"time"

	"github.com/dkravets/backoffice/internal/common"
	"github.com/dkravets/backoffice/internal/server/secrets"
)

// Throttle tracks failed login attempts per (client IP, email) pair in
// the secret store and flags a lockout once the limit is crossed. Both
// the counter and the flag self-expire.
type Throttle struct {
	store   secrets.Store
	limit   int
	window  time.Duration
	lockout time.Duration
}

// NewThrottle builds a Throttle with the given policy: limit failures
// within window, then lock for lockout.
func NewThrottle(store secrets.Store, limit int, window, lockout time.Duration) *Throttle {
	return &Throttle{store: store, limit: limit, window: window, lockout: lockout}
}

// Blocked reports whether the origin is currently locked out.
func (t *Throttle) Blocked(ctx context.Context, ip, email string) (bool, error) {
	_, err := t.store.Get(ctx, secrets.LockoutKey(ip, email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RecordFailure increments the failed-attempt counter and raises the
// lockout flag when the limit is reached.
func (t *Throttle) RecordFailure(ctx context.Context, ip, email string) error {
	count, err := t.store.Increment(ctx, secrets.FailedLoginKey(ip, email), t.window)
	if err != nil {
		return err
	}
	if count >= int64(t.limit) {
		return t.store.Set(ctx, secrets.LockoutKey(ip, email), "1", t.lockout)
	}
	return nil
}

// Reset clears the failed-attempt counter after a successful login.
func (t *Throttle) Reset(ctx context.Context, ip, email string) error {
	return t.store.Delete(ctx, secrets.FailedLoginKey(ip, email))
}
