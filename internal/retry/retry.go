// Package retry runs fallible calls under a bounded retry policy.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/user/docchat/internal/logx"
)

// Policy controls how failed calls are retried.
type Policy struct {
	// MaxAttempts counts the first call; values below 1 mean a single attempt.
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	// Retryable classifies errors. Nil treats every non-nil error as retryable.
	Retryable func(error) bool
}

// DefaultPolicy returns 3 attempts with a fixed 1s delay between them, retrying
// every error.
func DefaultPolicy() *Policy {
	return Fixed(3, time.Second)
}

// Fixed returns a policy with a constant inter-attempt delay.
func Fixed(attempts int, delay time.Duration) *Policy {
	return &Policy{
		MaxAttempts:  attempts,
		InitialDelay: delay,
		Multiplier:   1.0,
		MaxDelay:     delay,
	}
}

// ShouldRetry returns true if the error is retryable and the attempt count
// has not reached MaxAttempts.
func (p *Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.attempts() {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func (p *Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// NextDelay returns the delay after the given attempt number (1-indexed).
// The delay is InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p *Policy) NextDelay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Execute runs fn up to MaxAttempts times, sleeping between attempts. It
// returns nil on success, or the last error once attempts are exhausted or
// the error is not retryable. Context cancellation stops the wait early.
func (p *Policy) Execute(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	limit := p.attempts()
	for attempt := 1; attempt <= limit; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.ShouldRetry(err, attempt) {
			break
		}
		delay := p.NextDelay(attempt)
		logx.Warn().Err(err).Str("op", op).Int("attempt", attempt).Int("max_attempts", limit).
			Dur("delay", delay).Msg("request failed, retrying")
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return lastErr
		case <-t.C:
		}
	}
	if limit > 1 {
		logx.Error().Err(lastErr).Str("op", op).Int("max_attempts", limit).Msg("request failed after retries")
	}
	return lastErr
}

// Do is Execute for calls that produce a value.
func Do[T any](ctx context.Context, p *Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Execute(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
