package ratelimit

import (
	"context"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Decision is the outcome of registering one event against a limit.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter decides whether an event for key is within its limit.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Memory is an in-process fixed-window limiter used when no Redis is configured.
type Memory struct {
	inner *limiter.Limiter
}

// NewMemory allows max events per window and key.
func NewMemory(window time.Duration, max int) *Memory {
	rate := limiter.Rate{Period: window, Limit: int64(max)}
	return &Memory{inner: limiter.New(memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          "invoice",
		CleanUpInterval: window,
	}), rate)}
}

// Allow implements Limiter.
func (m *Memory) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := m.inner.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !res.Reached,
		Limit:     int(res.Limit),
		Remaining: int(res.Remaining),
		Reset:     time.Unix(res.Reset, 0),
	}, nil
}
