package fetch

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy decides whether a failed navigation is attempted again.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// FixedRetryPolicy retries up to maxAttempts with a constant delay.
type FixedRetryPolicy struct {
	maxAttempts int
	delay       time.Duration
}

// NewFixedRetryPolicy builds a policy. Non-positive attempts mean a single try.
func NewFixedRetryPolicy(maxAttempts int, delay time.Duration) *FixedRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if delay < 0 {
		delay = 0
	}
	return &FixedRetryPolicy{maxAttempts: maxAttempts, delay: delay}
}

// ShouldRetry reports whether attempt (1-based) may be followed by another.
func (p *FixedRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// Backoff returns the fixed inter-attempt delay.
func (p *FixedRetryPolicy) Backoff(int) time.Duration {
	return p.delay
}
