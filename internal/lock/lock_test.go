package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmehdipour/outline-admin/internal/errs"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T, wait time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, RedisConfig{TTL: time.Minute, Wait: wait, Poll: 5 * time.Millisecond}), mr
}

func lockers(t *testing.T, wait time.Duration) map[string]Locker {
	rl, _ := newRedisLocker(t, wait)
	return map[string]Locker{
		"memory": NewMemory(wait),
		"redis":  rl,
	}
}

func TestLocker_SerializesSameKey(t *testing.T) {
	for name, l := range lockers(t, 2*time.Second) {
		t.Run(name, func(t *testing.T) {
			var inside, maxInside atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					release, err := l.Acquire(context.Background(), "c1")
					if !assert.NoError(t, err) {
						return
					}
					n := inside.Add(1)
					for {
						m := maxInside.Load()
						if n <= m || maxInside.CompareAndSwap(m, n) {
							break
						}
					}
					time.Sleep(2 * time.Millisecond)
					inside.Add(-1)
					release()
				}()
			}
			wg.Wait()
			assert.EqualValues(t, 1, maxInside.Load())
		})
	}
}

func TestLocker_BusyAfterWait(t *testing.T) {
	for name, l := range lockers(t, 30*time.Millisecond) {
		t.Run(name, func(t *testing.T) {
			release, err := l.Acquire(context.Background(), "c2")
			require.NoError(t, err)
			defer release()

			_, err = l.Acquire(context.Background(), "c2")
			require.ErrorIs(t, err, errs.ErrBusy)

			// other keys are independent
			r2, err := l.Acquire(context.Background(), "c3")
			require.NoError(t, err)
			r2()
		})
	}
}

func TestRedis_ReleaseOnlyOwnLease(t *testing.T) {
	l, mr := newRedisLocker(t, 20*time.Millisecond)

	release, err := l.Acquire(context.Background(), "c4")
	require.NoError(t, err)

	// lease expired and someone else took it
	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set("lock:customer:c4", "someone-else"))

	release()
	got, err := mr.Get("lock:customer:c4")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestMemory_ReleaseIsIdempotent(t *testing.T) {
	m := NewMemory(20 * time.Millisecond)
	release, err := m.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()
	release()

	r2, err := m.Acquire(context.Background(), "k")
	require.NoError(t, err)
	r2()
	assert.Empty(t, m.slots)
}
