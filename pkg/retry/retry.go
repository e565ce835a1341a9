// Package retry runs an operation until it succeeds, with a fixed or
// exponentially growing delay between attempts.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Unlimited as MaxRetries retries until the context is cancelled.
const Unlimited = -1

// Config configures retry behavior.
type Config struct {
	// MaxRetries is the maximum number of retry attempts after the first
	// (default: 3). Unlimited never gives up.
	MaxRetries int

	// InitialDelay is the delay before the first retry (default: 1 second)
	InitialDelay time.Duration

	// MaxDelay caps the delay (default: 60 seconds)
	MaxDelay time.Duration

	// Multiplier grows the delay after each retry (default: 2.0).
	// 1.0 gives a fixed delay.
	Multiplier float64

	// OnRetry, if set, is called after a failed attempt and before sleeping.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns sensible defaults for retry behavior.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	}
}

// Fixed retries forever with the same delay between attempts.
func Fixed(delay time.Duration) Config {
	return Config{
		MaxRetries:   Unlimited,
		InitialDelay: delay,
		MaxDelay:     delay,
		Multiplier:   1.0,
	}
}

// Do executes fn until it returns nil, the retries run out or ctx is done.
//
// Example usage:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return db.PingContext(ctx)
//	})
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoResult is Do for functions that also return a value.
func DoResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; cfg.MaxRetries == Unlimited || attempt <= cfg.MaxRetries; attempt++ {
		// First attempt (no delay)
		if attempt > 0 {
			if err := Sleep(ctx, delay); err != nil {
				return result, fmt.Errorf("retry cancelled: %w", err)
			}
			delay = cfg.next(attempt)
		} else if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("retry cancelled: %w", err)
		}

		res, err := fn()
		if err == nil {
			return res, nil
		}

		result = res
		lastErr = err

		// Last attempt - don't report a retry that won't happen
		if cfg.MaxRetries != Unlimited && attempt == cfg.MaxRetries {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}
	}

	return result, fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}

// next returns the delay to use after the given attempt:
// min(InitialDelay * Multiplier^attempt, MaxDelay).
func (cfg Config) next(attempt int) time.Duration {
	mult := cfg.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := time.Duration(float64(cfg.InitialDelay) * math.Pow(mult, float64(attempt)))
	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return d
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
