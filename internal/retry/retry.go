package retry

import (
	"context"
	"time"
)

// Config holds retry behavior for a long-running backend call.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Backoff is the fixed delay before each retry.
	Backoff time.Duration
	// Retryable reports whether an error is worth another attempt.
	Retryable func(err error) bool
	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error)
}

// Transient returns the engine's policy for transient failures: exactly one
// automatic retry with a short fixed backoff.
func Transient(retryable func(error) bool) Config {
	return Config{
		MaxAttempts: 2,
		Backoff:     2 * time.Second,
		Retryable:   retryable,
	}
}

// Do executes fn under the config, honoring context cancellation between
// attempts and while backing off.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Retryable == nil {
		cfg.Retryable = func(err error) bool { return err != nil }
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !cfg.Retryable(lastErr) || attempt >= cfg.MaxAttempts {
			return lastErr
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}

		select {
		case <-time.After(cfg.Backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
