// Package pacing provides the bounded waits used between requests.
package pacing

import (
	"context"
	"fmt"
	"time"
)

// Pauser blocks for a delay or until the context is done.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration) error
}

// Timer pauses using a real timer.
type Timer struct{}

// NewTimer returns a timer-backed Pauser.
func NewTimer() Timer {
	return Timer{}
}

// Pause waits for delay. It returns the context error if ctx finishes first.
func (Timer) Pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("pause interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Recorder is a Pauser that returns immediately and remembers every delay.
// It is meant for tests and dry runs.
type Recorder struct {
	Delays []time.Duration
}

// Pause records delay without blocking.
func (r *Recorder) Pause(ctx context.Context, delay time.Duration) error {
	r.Delays = append(r.Delays, delay)
	return ctx.Err()
}
