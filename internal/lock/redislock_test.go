package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-invoice/internal/lock"
)

func newRedisLocker(t *testing.T) (lock.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Redis{R: client, Prefix: "invoice:lock:", RetryBackoff: 5 * time.Millisecond}, mr
}

func assertSerialized(t *testing.T, locker lock.Locker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}
	firstDone := make(chan struct{})
	releaseFirst := make(chan struct{})
	errs := make(chan error, 2)

	go func() {
		errs <- locker.WithLock(ctx, "export", time.Second, func(context.Context) error {
			record("first")
			close(firstDone)
			<-releaseFirst
			record("first-end")
			return nil
		})
	}()
	<-firstDone

	go func() {
		errs <- locker.WithLock(ctx, "export", time.Second, func(context.Context) error {
			record("second")
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	close(releaseFirst)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "first-end", "second"}, order)
}

func TestRedisLockSerializes(t *testing.T) {
	locker, mr := newRedisLocker(t)
	assertSerialized(t, locker)
	require.False(t, mr.Exists("invoice:lock:export"))
}

func TestLocalLockSerializes(t *testing.T) {
	assertSerialized(t, &lock.Local{})
}

func TestLockWaitHonoursContext(t *testing.T) {
	for name, locker := range map[string]lock.Locker{
		"local": &lock.Local{},
		"redis": func() lock.Locker { l, _ := newRedisLocker(t); return l }(),
	} {
		t.Run(name, func(t *testing.T) {
			hold := make(chan struct{})
			held := make(chan struct{})
			go func() {
				_ = locker.WithLock(context.Background(), "k", time.Second, func(context.Context) error {
					close(held)
					<-hold
					return nil
				})
			}()
			<-held
			defer close(hold)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()
			err := locker.WithLock(ctx, "k", time.Second, func(context.Context) error { return nil })
			require.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestRedisLockDoesNotReleaseForeignToken(t *testing.T) {
	locker, mr := newRedisLocker(t)
	err := locker.WithLock(context.Background(), "k", time.Second, func(context.Context) error {
		// Simulate expiry and takeover by another holder.
		mr.Set("invoice:lock:k", "someone-else")
		return nil
	})
	require.NoError(t, err)
	got, err := mr.Get("invoice:lock:k")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}
