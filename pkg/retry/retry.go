// Package retry retries operations with exponential backoff and jitter.
// It is used to dial Postgres and Redis at startup.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Permanent wraps an error to indicate it should not be retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Config holds retry configuration.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including first attempt).
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration

	// Multiplier is the factor by which delay increases after each attempt.
	Multiplier float64

	// JitterFactor randomises delays (0.0 = none, 1.0 = up to ±100%).
	JitterFactor float64

	// OnRetry is called before each retry.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// Option is a functional option for configuring retries.
type Option func(*Config)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithInitialDelay sets the initial delay before first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.InitialDelay = d
		}
	}
}

// WithMaxDelay sets the maximum delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxDelay = d
		}
	}
}

// WithJitter sets the jitter factor (0.0 to 1.0).
func WithJitter(j float64) Option {
	return func(c *Config) {
		if j >= 0 && j <= 1.0 {
			c.JitterFactor = j
		}
	}
}

// WithOnRetry sets a callback function called before each retry.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) {
		c.OnRetry = fn
	}
}

// Do runs operation until it succeeds, returns a Permanent error, the
// attempts are exhausted or ctx is done. The last error is returned.
func Do(ctx context.Context, operation func(ctx context.Context) error, opts ...Option) error {
	_, err := DoWithResult(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	}, opts...)
	return err
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, operation func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.InitialDelay
	b.MaxInterval = config.MaxDelay
	b.Multiplier = config.Multiplier
	b.RandomizationFactor = config.JitterFactor

	attempt := 0
	return backoff.Retry(ctx,
		func() (T, error) {
			attempt++
			return operation(ctx)
		},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(config.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, delay time.Duration) {
			if config.OnRetry != nil {
				config.OnRetry(attempt, err, delay)
			}
		}),
	)
}
