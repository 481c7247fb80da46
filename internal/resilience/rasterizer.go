package resilience

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/noah-isme/backend-invoice/internal/raster"
)

// Rasterizer guards a raster.Rasterizer with retries and a circuit breaker.
type Rasterizer struct {
	Next        raster.Rasterizer
	Breaker     *Breaker
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
}

// Rasterize calls Next, retrying failures that are neither caller cancellations nor a closed browser.
// It returns ErrOpenCircuit while the breaker is open.
func (g Rasterizer) Rasterize(ctx context.Context, html string) (image.Image, error) {
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if g.Breaker != nil && !g.Breaker.Allow(ctx) {
			countAttempt("rejected")
			if lastErr != nil {
				return nil, errors.Join(ErrOpenCircuit, lastErr)
			}
			return nil, ErrOpenCircuit
		}
		img, err := g.Next.Rasterize(ctx, html)
		if err == nil {
			g.report(ctx, true)
			countAttempt("ok")
			return img, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			// The caller gave up; that says nothing about the browser.
			if g.Breaker != nil {
				g.Breaker.Abandon()
			}
			countAttempt("cancelled")
			return nil, err
		}
		g.report(ctx, false)
		countAttempt("error")
		if errors.Is(err, raster.ErrClosed) || attempt == attempts {
			break
		}
		timer := time.NewTimer(Backoff(g.BaseBackoff, attempt, g.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// Budget returns the longest a Rasterize call can run when each attempt is bounded by perAttempt,
// including the backoff between attempts at full jitter.
func (g Rasterizer) Budget(perAttempt time.Duration) time.Duration {
	attempts := max(g.MaxAttempts, 1)
	total := time.Duration(attempts) * perAttempt
	for attempt := 1; attempt < attempts; attempt++ {
		total += MaxBackoff(g.BaseBackoff, attempt, g.Jitter)
	}
	return total
}

func (g Rasterizer) report(ctx context.Context, success bool) {
	if g.Breaker != nil {
		g.Breaker.Report(ctx, success)
	}
}

func countAttempt(result string) {
	if RasterizeAttempts != nil {
		RasterizeAttempts.WithLabelValues(result).Inc()
	}
}
