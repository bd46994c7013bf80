package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisLocker creates a miniredis instance and a locker on top of it
func setupRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr(), "", 0, 3, 10)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return NewRedisLocker(client, RedisConfig{
		Prefix:     "test:",
		TTL:        time.Second,
		RetryDelay: 5 * time.Millisecond,
	}), mr
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "invalid://url", "", 0, 0, 0)
	assert.Error(t, err)
}

func TestRedisLocker_LockAndRelease(t *testing.T) {
	l, mr := setupRedisLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "subscriber:1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:subscriber:1"))

	_, err = l.TryLock(ctx, "subscriber:1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	assert.False(t, mr.Exists("test:subscriber:1"))

	unlock, err = l.TryLock(ctx, "subscriber:1")
	require.NoError(t, err)
	unlock()
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	l, mr := setupRedisLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "k")
	require.NoError(t, err)

	// Lease expires and another holder takes the key.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("test:k", "someone-else"))

	unlock()
	got, err := mr.Get("test:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_RenewsLeaseWhileHeld(t *testing.T) {
	l, mr := setupRedisLocker(t)
	ctx := context.Background()

	unlock, err := l.TryLock(ctx, "billing:cycle")
	require.NoError(t, err)

	// Most of the lease passes; the holder must push the expiry back out.
	mr.FastForward(900 * time.Millisecond)
	require.True(t, mr.Exists("test:billing:cycle"))
	assert.Eventually(t, func() bool {
		return mr.TTL("test:billing:cycle") == time.Second
	}, 2*time.Second, 20*time.Millisecond)

	// Several lease lengths later the lock is still held.
	for i := 0; i < 3; i++ {
		mr.FastForward(900 * time.Millisecond)
		require.True(t, mr.Exists("test:billing:cycle"), "lease %d", i)
		require.Eventually(t, func() bool {
			return mr.TTL("test:billing:cycle") == time.Second
		}, 2*time.Second, 20*time.Millisecond)
	}
	_, err = l.TryLock(ctx, "billing:cycle")
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	assert.False(t, mr.Exists("test:billing:cycle"))
}

func TestRedisLocker_StopsRenewingForeignLock(t *testing.T) {
	l, mr := setupRedisLocker(t)

	unlock, err := l.TryLock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	require.NoError(t, mr.Set("test:k", "someone-else"))
	mr.SetTTL("test:k", 5*time.Second)

	// Wait past a couple of renewal intervals.
	time.Sleep(800 * time.Millisecond)
	got, err := mr.Get("test:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
	assert.Equal(t, 5*time.Second, mr.TTL("test:k"))
}

func TestRedisLocker_Exclusive(t *testing.T) {
	l, _ := setupRedisLocker(t)
	ctx := context.Background()

	var counter, inside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "shared")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()
			if atomic.AddInt32(&inside, 1) != 1 {
				t.Error("two holders inside the critical section")
			}
			atomic.AddInt32(&counter, 1)
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(10), counter)
}

func TestRedisLocker_ContextCancelled(t *testing.T) {
	l, _ := setupRedisLocker(t)

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLocker_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	l := NewRedisLocker(client, RedisConfig{})
	_, err = l.TryLock(context.Background(), "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAcquired)
}
