package openai

import (
	"context"
	"sync"
	"time"
)

// A simple token bucket rate limiter.
type rateLimiter struct {
	mu       sync.Mutex // protects lastTime and tokens
	lastTime time.Time
	tokens   int

	rate   int
	window time.Duration
}

// newRateLimiter creates a rate limiter that allows rate units of work over
// the provided time window, e.g. newRateLimiter(20, time.Minute) permits 20
// requests a minute.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		rate:     rate,
		window:   window,
		lastTime: time.Now(),
		tokens:   rate,
	}
}

// Acquire returns nil when work can proceed. If the bucket is empty it sleeps
// until at least one token should have accumulated and tries again. If ctx is
// Done it returns ctx.Err().
func (rl *rateLimiter) Acquire(ctx context.Context) error {
	for {
		if rl.tryAcquire() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.window / time.Duration(rl.rate)):
			// Assuming an even spread of tokens across the window, 1/Nth
			// of the window is long enough for one token to accumulate.
		}
	}
}

func (rl *rateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastTime)
	rl.lastTime = now

	// Refill proportional to the time since the last attempt.
	rl.tokens += int(elapsed.Nanoseconds() * int64(rl.rate) / rl.window.Nanoseconds())
	rl.tokens = min(rl.tokens, rl.rate)
	if rl.tokens <= 0 {
		return false
	}

	rl.tokens--
	return true
}
