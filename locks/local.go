// locks/local.go
package locks

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type localHold struct {
	token   string
	expires time.Time
}

// LocalLocker is an in-process Locker for single-node deployments and tests.
// Leases expire exactly like their Redis counterparts.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localHold
	now  func() time.Time
}

var _ Locker = (*LocalLocker)(nil)

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]localHold),
		now:  time.Now,
	}
}

func (m *LocalLocker) TryAcquire(ctx context.Context, name string, wait, lease time.Duration) (*Lease, error) {
	if lease <= 0 {
		return nil, fmt.Errorf("lease must be positive, got %v", lease)
	}
	l := newLease(name)
	err := acquireLoop(ctx, wait, func() (bool, error) {
		m.mu.Lock()
		defer m.mu.Unlock()

		now := m.now()
		if h, ok := m.held[name]; ok && now.Before(h.expires) {
			return false, nil
		}
		l.ExpiresAt = now.Add(lease)
		m.held[name] = localHold{token: l.Token, expires: l.ExpiresAt}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (m *LocalLocker) Release(_ context.Context, l *Lease) error {
	if l == nil || !l.markReleased() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.held[l.Name]; ok && h.token == l.Token {
		delete(m.held, l.Name)
	}
	return nil
}
