// locks/locker.go
package locks

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrNotAcquired is returned when the wait window elapses while another
// holder still owns the lock.
var ErrNotAcquired = errors.New("lock not acquired")

// pollInterval is how often a waiting caller retries acquisition.
const pollInterval = 25 * time.Millisecond

// Locker grants named, time-bounded, mutually exclusive leases.
type Locker interface {
	TryAcquire(ctx context.Context, name string, wait, lease time.Duration) (*Lease, error)
	Release(ctx context.Context, l *Lease) error
}

// Lease is proof of holding a named lock. Releasing it more than once is a no-op.
type Lease struct {
	Name  string
	Token string

	// ExpiresAt is when the lock store drops the key unless released first.
	ExpiresAt time.Time

	released atomic.Bool
}

func newLease(name string) *Lease {
	return &Lease{Name: name, Token: uuid.NewString()}
}

// markReleased reports true only for the first call.
func (l *Lease) markReleased() bool {
	return l.released.CompareAndSwap(false, true)
}

// acquireLoop calls try until it succeeds, errors, the wait elapses or ctx ends.
func acquireLoop(ctx context.Context, wait time.Duration, try func() (bool, error)) error {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
