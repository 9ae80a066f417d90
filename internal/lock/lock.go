// Package lock provides a keyed advisory lock with pluggable backends
// (MongoDB, Redis, in-process). The booking flow holds one per trainer and
// day so that its availability check and insert cannot interleave with
// another booking for the same trainer and day.
package lock

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
)

// ErrTimeout is returned when the lock could not be acquired within the wait budget.
var ErrTimeout = errors.New("lock: wait exceeded")

const pollInterval = 20 * time.Millisecond

// Backend stores lock ownership. TryAcquire must be atomic: of any number of
// concurrent callers for the same free key, exactly one gets true.
type Backend interface {
	TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
}

// Locker acquires keyed leases, polling the backend until the wait budget
// runs out.
type Locker struct {
	backend Backend
	ttl     time.Duration
	wait    time.Duration
}

// NewLocker creates a Locker. ttl bounds how long a crashed holder can block
// the key; wait bounds how long Acquire polls.
func NewLocker(backend Backend, ttl, wait time.Duration) *Locker {
	return &Locker{backend: backend, ttl: ttl, wait: wait}
}

// Lease is a held lock. Release it exactly once.
type Lease struct {
	locker     *Locker
	key        string
	token      string
	acquiredAt time.Time
}

// Acquire blocks until key is held, ctx is done, or the wait budget is spent.
func (l *Locker) Acquire(ctx context.Context, key string) (*Lease, error) {
	token := uuid.NewString()
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.backend.TryAcquire(waitCtx, key, token, l.ttl)
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return nil, ErrTimeout
			}
			return nil, err
		}
		if ok {
			return &Lease{locker: l, key: key, token: token, acquiredAt: time.Now()}, nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrTimeout
		case <-ticker.C:
		}
	}
}

// Expiring reports whether less than a quarter of the TTL is left. Backends
// hand out expired keys without fencing, so a holder past this point must not
// start a write the lock is meant to protect.
func (l *Lease) Expiring() bool {
	return time.Since(l.acquiredAt) > l.locker.ttl-l.locker.ttl/4
}

// Release gives the key back. It uses a fresh context so a cancelled request
// still frees its lock.
func (l *Lease) Release() {
	if held := time.Since(l.acquiredAt); held > l.locker.ttl {
		log.Printf("WARN: Lock %s held for %s, longer than its %s TTL; another holder may have overlapped", l.key, held.Round(time.Millisecond), l.locker.ttl)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.locker.backend.Release(ctx, l.key, l.token); err != nil {
		// The TTL will free it eventually
		log.Printf("WARN: Failed to release lock %s: %v", l.key, err)
	}
}
