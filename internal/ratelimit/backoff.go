package ratelimit

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// CalculateBackoff returns the delay before retry attempt (1-based) with
// +/-25% jitter, capped at MaxBackoff.
func CalculateBackoff(attempt int, cfg Config) time.Duration {
	cfg = applyDefaults(cfg)
	if attempt <= 0 {
		return 0
	}
	base := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	base = min(base, float64(cfg.MaxBackoff))
	backoff := base + base*0.25*(2*rand.Float64()-1)
	return time.Duration(max(0, min(backoff, float64(cfg.MaxBackoff))))
}

// Retry calls fn until it succeeds, maxRetries retries are spent, ctx is
// done, or retryable reports false for the returned error. The limiter paces
// each attempt and supplies the backoff between attempts.
func Retry(ctx context.Context, limiter Limiter, maxRetries int, retryable func(error) bool, fn func(attempt int) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if waitErr := sleep(ctx, limiter.RetryAfter(attempt)); waitErr != nil {
				return err
			}
		}
		if waitErr := limiter.Wait(ctx); waitErr != nil {
			if err != nil {
				return err
			}
			return waitErr
		}
		err = fn(attempt)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || (retryable != nil && !retryable(err)) {
			return err
		}
	}
}
