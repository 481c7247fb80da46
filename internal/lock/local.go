package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Local is an in-process Locker for single instance deployments. The ttl is ignored: the lock is
// held exactly as long as fn runs. The zero value is ready to use.
type Local struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// WithLock executes fn while no other caller holds key.
func (l *Local) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	for {
		l.mu.Lock()
		if l.held == nil {
			l.held = make(map[string]chan struct{})
		}
		wait, busy := l.held[key]
		if !busy {
			done := make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()
			defer func() {
				l.mu.Lock()
				delete(l.held, key)
				l.mu.Unlock()
				close(done)
			}()
			return fn(ctx)
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}
