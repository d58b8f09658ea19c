package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config bounds the retry loop. Attempts counts the first call too.
type Config struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Jitter is the +/- fraction applied to every backoff, 0 disables it.
	Jitter float64
}

func DefaultConfig() Config {
	return Config{
		Attempts:       3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
		Jitter:         0.2,
	}
}

// RetryIf decides whether an error is worth another attempt.
type RetryIf func(error) bool

// OnRetry is called before sleeping ahead of attempt number next.
type OnRetry func(next int, err error, wait time.Duration)

// ErrExhausted wraps the last error once all attempts failed.
var ErrExhausted = errors.New("retry attempts exhausted")

type exhaustedError struct {
	attempts int
	last     error
}

func (e *exhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrExhausted, e.attempts, e.last)
}

func (e *exhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.last}
}

func (c Config) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialBackoff
	if c.MaxBackoff > 0 {
		b.MaxInterval = c.MaxBackoff
	}
	b.Multiplier = max(c.Multiplier, 1)
	b.RandomizationFactor = c.Jitter
	return b
}

// Do runs op until it succeeds, returns an error retryIf rejects, attempts run
// out, or ctx is done.
func Do(ctx context.Context, cfg Config, retryIf RetryIf, onRetry OnRetry, op func(ctx context.Context) error) error {
	attempts := max(cfg.Attempts, 1)

	var (
		attempt int
		lastErr error
	)
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := ctx.Err(); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		attempt++
		lastErr = op(ctx)
		if lastErr != nil && retryIf != nil && !retryIf(lastErr) {
			return struct{}{}, backoff.Permanent(lastErr)
		}
		return struct{}{}, lastErr
	},
		backoff.WithBackOff(cfg.backOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if onRetry != nil {
				onRetry(attempt+1, err, wait)
			}
		}),
	)

	var permanent *backoff.PermanentError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &permanent):
		if lastErr != nil && !errors.Is(permanent.Err, lastErr) {
			return errors.Join(permanent.Err, lastErr)
		}
		return permanent.Err
	case lastErr != nil && errors.Is(err, lastErr):
		return &exhaustedError{attempts: attempt, last: lastErr}
	case lastErr != nil:
		// ctx ended while waiting for the next attempt.
		return errors.Join(err, lastErr)
	default:
		return err
	}
}
