package update

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/InstaWP/iwp-mu/internal/state"
)

// Lock is the cross-process update lock. Each Lock has its own holder
// token, so only the process that acquired it can refresh or release it.
type Lock struct {
	locker state.Locker
	name   string
	holder string
	ttl    time.Duration
	now    func() time.Time
}

// NewLock creates a lock handle with a fresh holder token
func NewLock(locker state.Locker, name string) *Lock {
	return &Lock{
		locker: locker,
		name:   name,
		holder: uuid.NewString(),
		now:    time.Now,
	}
}

// WithClock replaces the time source
func (l *Lock) WithClock(now func() time.Time) *Lock {
	l.now = now
	return l
}

// Holder returns this handle's holder token
func (l *Lock) Holder() string {
	return l.holder
}

// Acquire takes the lock for ttl. It returns false without error when
// another holder has an unexpired lock.
func (l *Lock) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("lock ttl must be positive, got %s", ttl)
	}

	ok, err := l.locker.TryLock(ctx, l.name, l.holder, l.now(), ttl)
	if err != nil {
		return false, fmt.Errorf("failed to acquire %s: %w", l.name, err)
	}
	if ok {
		l.ttl = ttl
		log.WithFields(log.Fields{"lock": l.name, "holder": l.holder, "ttl": ttl}).Debug("lock acquired")
	}
	return ok, nil
}

// Refresh extends the lease by the ttl used to acquire it. It fails with
// ErrLockLost when the lease expired or another holder took the lock.
func (l *Lock) Refresh(ctx context.Context) error {
	if l.ttl == 0 {
		return fmt.Errorf("%w: %s was never acquired", ErrLockLost, l.name)
	}

	ok, err := l.locker.ExtendLock(ctx, l.name, l.holder, l.now(), l.ttl)
	if err != nil {
		return fmt.Errorf("failed to refresh %s: %w", l.name, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s is no longer held by %s", ErrLockLost, l.name, l.holder)
	}
	return nil
}

// Release drops the lock if this handle still holds it
func (l *Lock) Release(ctx context.Context) error {
	if err := l.locker.Unlock(ctx, l.name, l.holder); err != nil {
		return fmt.Errorf("failed to release %s: %w", l.name, err)
	}
	l.ttl = 0
	log.WithFields(log.Fields{"lock": l.name, "holder": l.holder}).Debug("lock released")
	return nil
}
