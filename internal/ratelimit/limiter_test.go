// AngelaMos | 2026
// limiter_test.go

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client)
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  newRedisStore(t),
	}
}

func TestLimiter_AllowsUpToLimitThenDenies(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			l := New(store, Config{Window: 15 * time.Minute, MaxRequests: 5}, WithClock(clock))

			for i := range 5 {
				d, err := l.Check(ctx, "203.0.113.7")
				require.NoError(t, err)
				assert.True(t, d.Allowed, "request %d should pass", i+1)
				assert.Equal(t, 5-(i+1), d.Remaining)
			}

			d, err := l.Check(ctx, "203.0.113.7")
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, 0, d.Remaining)
			assert.Equal(t, 15*time.Minute, d.RetryAfter)
		})
	}
}

func TestLimiter_DeniedRequestDoesNotExtendWindow(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			l := New(store, Config{Window: time.Minute, MaxRequests: 1}, WithClock(clock))

			first, err := l.Check(ctx, "c")
			require.NoError(t, err)
			require.True(t, first.Allowed)

			clock.Advance(40 * time.Second)
			d, err := l.Check(ctx, "c")
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, first.ResetAt.Unix(), d.ResetAt.Unix())
			assert.Equal(t, 20*time.Second, d.RetryAfter)
		})
	}
}

func TestLimiter_NewWindowAfterReset(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			l := New(store, Config{Window: time.Minute, MaxRequests: 2}, WithClock(clock))

			for range 3 {
				_, err := l.Check(ctx, "c")
				require.NoError(t, err)
			}

			clock.Advance(time.Minute + time.Second)

			d, err := l.Check(ctx, "c")
			require.NoError(t, err)
			assert.True(t, d.Allowed)
			assert.Equal(t, 1, d.Remaining)
			assert.Equal(t, clock.Now().Add(time.Minute).Unix(), d.ResetAt.Unix())
		})
	}
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	ctx := context.Background()
	l := New(NewMemoryStore(), Config{Window: time.Minute, MaxRequests: 1})

	a, err := l.Check(ctx, "a")
	require.NoError(t, err)
	b, err := l.Check(ctx, "b")
	require.NoError(t, err)

	assert.True(t, a.Allowed)
	assert.True(t, b.Allowed)
}

func TestLimiter_EmptyClientSharesUnknownBucket(t *testing.T) {
	ctx := context.Background()
	l := New(NewMemoryStore(), Config{Window: time.Minute, MaxRequests: 1})

	_, err := l.Check(ctx, "")
	require.NoError(t, err)

	d, err := l.Check(ctx, UnknownClient)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestLimiter_RetryAfterIsAtLeastOneSecond(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	l := New(NewMemoryStore(), Config{Window: time.Second, MaxRequests: 1}, WithClock(clock))

	_, err := l.Check(ctx, "c")
	require.NoError(t, err)

	clock.Advance(time.Second)
	d, err := l.Check(ctx, "c")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)
}

func TestLimiter_Sweep(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			l := New(store, Config{Window: time.Minute, MaxRequests: 5}, WithClock(clock))

			_, err := l.Check(ctx, "old")
			require.NoError(t, err)

			clock.Advance(45 * time.Second)
			_, err = l.Check(ctx, "fresh")
			require.NoError(t, err)

			clock.Advance(30 * time.Second)
			removed, err := l.Sweep(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, removed)

			size, err := l.Size(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, size)
		})
	}
}

func TestLimiter_ConcurrentChecksCountEveryRequest(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := New(store, Config{Window: time.Hour, MaxRequests: 20})

			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				allowed int
			)
			for range 50 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					d, err := l.Check(ctx, "burst")
					if err != nil {
						return
					}
					if d.Allowed {
						mu.Lock()
						allowed++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 20, allowed)
		})
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	l := New(NewMemoryStore(), Config{})

	assert.Equal(t, DefaultWindow, l.Config().Window)
	assert.Equal(t, DefaultMaxRequests, l.Config().MaxRequests)
}

func TestLimiter_RunStopsOnCancel(t *testing.T) {
	l := New(NewMemoryStore(), Config{Window: 10 * time.Millisecond, MaxRequests: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
