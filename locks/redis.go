// locks/redis.go
package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lease can never remove a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLocker coordinates leases across processes via SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
}

var _ Locker = (*RedisLocker)(nil)

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

// NewRedisClient builds a client from address, password and db index.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

func (r *RedisLocker) TryAcquire(ctx context.Context, name string, wait, lease time.Duration) (*Lease, error) {
	if lease <= 0 {
		return nil, fmt.Errorf("lease must be positive, got %v", lease)
	}
	l := newLease(name)
	err := acquireLoop(ctx, wait, func() (bool, error) {
		attempt := time.Now()
		ok, err := r.client.SetNX(ctx, name, l.Token, lease).Result()
		if err != nil {
			return false, fmt.Errorf("redis SETNX %s: %w", name, err)
		}
		if ok {
			l.ExpiresAt = attempt.Add(lease)
		}
		return ok, nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *RedisLocker) Release(ctx context.Context, l *Lease) error {
	if l == nil || !l.markReleased() {
		return nil
	}
	res, err := releaseScript.Run(ctx, r.client, []string{l.Name}, l.Token).Int64()
	if err != nil {
		return fmt.Errorf("redis release %s: %w", l.Name, err)
	}
	if res == 0 {
		zap.L().Warn("lock lease expired before release", zap.String("lock", l.Name))
	}
	return nil
}
