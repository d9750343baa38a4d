package llm

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

// RetryConfig describes the backoff schedule for reissuing failed model
// calls. The batch executor owns the retry loop itself (attempt counting,
// event emission, state transitions); this config only answers "how long
// to wait before attempt N".
type RetryConfig struct {
	// MaxRetries is the total number of attempts allowed (not additional
	// retries): MaxRetries = 3 means a batch gives up after its third
	// failed attempt.
	MaxRetries int

	// InitialDelay is the delay before the first reissue.
	InitialDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier (typically 2.0 for exponential).
	Multiplier float64

	// Jitter adds randomness to prevent thundering herd (0.0-1.0). A value
	// of 0.2 spreads each delay across ±20% of its nominal value.
	Jitter float64
}

// DefaultRetryConfig returns the retry settings used by batch execution.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

// Backoff computes the delay before the given attempt (1-based: attempt 1
// is the first reissue after the initial failure).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// Exponential backoff: initialDelay * multiplier^(attempt-1), capped.
	backoff := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	if backoff > float64(c.MaxDelay) {
		backoff = float64(c.MaxDelay)
	}

	// Add jitter: backoff * (1 ± jitter).
	if c.Jitter > 0 {
		jitterAmount := backoff * c.Jitter
		jitterDelta := (rand.Float64() * 2 * jitterAmount) - jitterAmount
		backoff += jitterDelta
	}

	return time.Duration(backoff)
}

// DelayFor computes the wait before the given attempt, honoring a server
// supplied Retry-After when the failure was a rate limit. The server value
// wins only when it exceeds the computed backoff; it is still capped at
// MaxDelay.
func (c RetryConfig) DelayFor(err error, attempt int) time.Duration {
	delay := c.Backoff(attempt)

	var rateErr *errors.RateLimitError
	if errors.As(err, &rateErr) && rateErr.RetryAfter > delay {
		delay = rateErr.RetryAfter
		if delay > c.MaxDelay {
			delay = c.MaxDelay
		}
	}

	return delay
}

// Wait sleeps for the backoff delay appropriate to err and attempt,
// returning early with the context error if ctx is cancelled.
func (c RetryConfig) Wait(ctx context.Context, err error, attempt int) error {
	delay := c.DelayFor(err, attempt)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
