package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedDelay spaces calls at least FixedDelay apart.
type FixedDelay struct {
	mu     sync.Mutex
	delay  time.Duration
	last   time.Time
	config Config
}

func NewFixedDelay(cfg Config) *FixedDelay {
	cfg = applyDefaults(cfg)
	return &FixedDelay{delay: cfg.FixedDelay, config: cfg}
}

func (f *FixedDelay) Wait(ctx context.Context) error {
	f.mu.Lock()
	now := time.Now()
	wait := f.pending(now)
	f.last = now.Add(wait)
	f.mu.Unlock()
	if wait <= 0 {
		return nil
	}
	return sleep(ctx, wait)
}

func (f *FixedDelay) Allow() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	if f.pending(now) > 0 {
		return false
	}
	f.last = now
	return true
}

func (f *FixedDelay) Reserve() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending(time.Now())
}

func (f *FixedDelay) pending(now time.Time) time.Duration {
	if f.last.IsZero() {
		return 0
	}
	if elapsed := now.Sub(f.last); elapsed < f.delay {
		return f.delay - elapsed
	}
	return 0
}

func (f *FixedDelay) RetryAfter(attempt int) time.Duration {
	return CalculateBackoff(attempt, f.config)
}

func (f *FixedDelay) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = time.Time{}
}
