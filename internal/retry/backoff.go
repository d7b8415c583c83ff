// Package retry retries an operation with exponential backoff.  The
// control client uses it to wait for a server that is still binding.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"remoteserver/internal/clock"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError stops Backoff.Do on the attempt that returned it.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying.  Do returns the inner
// error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked with Permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ── Backoff ──────────────────────────────────────────────────────────

// Backoff is a retry budget.  The zero value makes
// DefaultMaxAttempts tries, starting DefaultInitialDelay apart.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// MaxAttempts counts the first try.  Negative means unlimited
	// (until the context ends).
	MaxAttempts int
	// Jitter spreads each wait by up to ±25%.
	Jitter bool
	// Clock paces the waits.  Nil means the real clock.
	Clock clock.Clock
}

const (
	DefaultInitialDelay = 100 * time.Millisecond
	DefaultMaxDelay     = 2 * time.Second
	DefaultMultiplier   = 2.0
	DefaultMaxAttempts  = 3
)

// DefaultBackoff returns the policy used by the control client.
func DefaultBackoff() *Backoff {
	return &Backoff{
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
		MaxAttempts:  DefaultMaxAttempts,
		Jitter:       true,
	}
}

// Do calls fn until it returns nil or a Permanent error, the attempts
// run out, or ctx ends.  fn receives the 1-based attempt number.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	delay := b.InitialDelay
	if delay <= 0 {
		delay = DefaultInitialDelay
	}
	multiplier := b.Multiplier
	if multiplier <= 0 {
		multiplier = DefaultMultiplier
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	attempts := b.MaxAttempts
	if attempts == 0 {
		attempts = DefaultMaxAttempts
	}
	clk := b.Clock
	if clk == nil {
		clk = clock.Real()
	}

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if attempts > 0 && attempt >= attempts {
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}

		wait := delay
		if b.Jitter {
			wait = addJitter(delay)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-clk.After(wait):
		}

		delay = min(time.Duration(float64(delay)*multiplier), maxDelay)
	}
}

// addJitter returns d ±25%, never below a millisecond.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	return time.Duration(math.Max(float64(d)+delta, float64(time.Millisecond)))
}
