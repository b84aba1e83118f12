package locks

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedisLocker talks to REDIS_ADDR when set, otherwise to an in-process
// miniredis. The returned server is nil for a real Redis.
func newTestRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	var mr *miniredis.Miniredis
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		mr = miniredis.RunT(t)
		addr = mr.Addr()
	}
	client := NewRedisClient(addr, os.Getenv("REDIS_PASSWORD"), 0)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return NewRedisLocker(client), mr
}

// expire lets a lease lapse: fast-forwards miniredis or sleeps past it on a
// real server.
func expire(mr *miniredis.Miniredis, lease time.Duration) {
	if mr != nil {
		mr.FastForward(lease + time.Millisecond)
		return
	}
	time.Sleep(lease + 30*time.Millisecond)
}

func TestRedisLocker_AcquireContendRelease(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestRedisLocker(t)
	name := "lock:test:" + uuid.NewString()

	before := time.Now()
	lease, err := locker.TryAcquire(ctx, name, 0, 2*time.Second)
	require.NoError(t, err)
	assert.False(t, lease.ExpiresAt.Before(before.Add(2*time.Second)))
	assert.False(t, lease.ExpiresAt.After(time.Now().Add(2*time.Second)))
	if mr != nil {
		held, err := mr.Get(name)
		require.NoError(t, err)
		assert.Equal(t, lease.Token, held)
	}

	_, err = locker.TryAcquire(ctx, name, 60*time.Millisecond, 2*time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, locker.Release(ctx, lease))
	require.NoError(t, locker.Release(ctx, lease))
	if mr != nil {
		assert.False(t, mr.Exists(name), "release deletes the key")
	}

	again, err := locker.TryAcquire(ctx, name, 0, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, locker.Release(ctx, again))
}

func TestRedisLocker_SetsLeaseTTL(t *testing.T) {
	locker, mr := newTestRedisLocker(t)
	if mr == nil {
		t.Skip("TTL inspection needs the in-process server")
	}
	name := "lock:test:" + uuid.NewString()

	lease, err := locker.TryAcquire(context.Background(), name, 0, 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, mr.TTL(name))
	require.NoError(t, locker.Release(context.Background(), lease))
}

func TestRedisLocker_WaitsForExpiredHolder(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestRedisLocker(t)
	name := "lock:test:" + uuid.NewString()

	_, err := locker.TryAcquire(ctx, name, 0, 50*time.Millisecond)
	require.NoError(t, err)

	expire(mr, 50*time.Millisecond)
	successor, err := locker.TryAcquire(ctx, name, time.Second, 2*time.Second)
	require.NoError(t, err, "an abandoned lease frees the name")
	require.NoError(t, locker.Release(ctx, successor))
}

func TestRedisLocker_StaleReleaseKeepsSuccessor(t *testing.T) {
	ctx := context.Background()
	locker, mr := newTestRedisLocker(t)
	name := "lock:test:" + uuid.NewString()

	stale, err := locker.TryAcquire(ctx, name, 0, 50*time.Millisecond)
	require.NoError(t, err)
	expire(mr, 50*time.Millisecond)

	successor, err := locker.TryAcquire(ctx, name, 0, 2*time.Second)
	require.NoError(t, err)

	require.NoError(t, locker.Release(ctx, stale))
	_, err = locker.TryAcquire(ctx, name, 0, 2*time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, locker.Release(ctx, successor))
}

func TestRedisLocker_ServerDown(t *testing.T) {
	if os.Getenv("REDIS_ADDR") != "" {
		t.Skip("needs the in-process server")
	}
	locker, mr := newTestRedisLocker(t)
	mr.Close()

	_, err := locker.TryAcquire(context.Background(), "lock:test:down", 0, time.Second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAcquired)
}
