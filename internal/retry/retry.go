// Package retry runs an operation with bounded attempts and capped
// exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

type Config struct {
	// Attempts is the total number of calls, including the first. Values
	// below 1 mean a single call.
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    time.Duration
	// ShouldRetry reports whether err is transient. Nil retries every error.
	ShouldRetry func(error) bool
}

func (c Config) withDefaults() Config {
	if c.Attempts < 1 {
		c.Attempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 200 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 2 * time.Second
	}
	if c.Jitter <= 0 {
		c.Jitter = 100 * time.Millisecond
	}
	return c
}

// backoff is the wait after failed attempt n (zero based).
func (c Config) backoff(n int) time.Duration {
	delay := c.BaseDelay
	for i := 0; i < n && delay < c.MaxDelay; i++ {
		delay *= 2
	}
	delay += time.Duration(rand.Int63n(int64(c.Jitter)))
	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Do calls fn until it succeeds, returns a non-retryable error, or runs out
// of attempts. Cancelling ctx interrupts the wait between attempts.
func Do(ctx context.Context, config Config, fn func() error) error {
	cfg := config.withDefaults()
	var err error
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		if attempt > 0 {
			if werr := sleep(ctx, cfg.backoff(attempt-1)); werr != nil {
				return werr
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			return err
		}
	}
	return fmt.Errorf("retry failed after %d attempts: %w", cfg.Attempts, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
