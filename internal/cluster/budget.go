package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Budget is the remaining time a cluster has for one lifecycle. Every phase
// of the lifecycle draws from the same budget; it is never reset.
type Budget struct {
	total    time.Duration
	deadline time.Time
	now      func() time.Time
}

// NewBudget starts a budget of total from now.
func NewBudget(total time.Duration) *Budget {
	return NewBudgetWithClock(total, time.Now)
}

// NewBudgetWithClock starts a budget using a custom clock.
func NewBudgetWithClock(total time.Duration, now func() time.Time) *Budget {
	if total <= 0 {
		total = DefaultTimeout
	}
	return &Budget{total: total, deadline: now().Add(total), now: now}
}

// Total returns the budget the lifecycle started with.
func (b *Budget) Total() time.Duration {
	return b.total
}

// Deadline returns the instant the budget runs out.
func (b *Budget) Deadline() time.Time {
	return b.deadline
}

// Remaining returns the time left, never negative.
func (b *Budget) Remaining() time.Duration {
	left := b.deadline.Sub(b.now())
	if left < 0 {
		return 0
	}
	return left
}

// Check fails with ErrTimeout when the budget is exhausted. Drivers call it
// before starting a phase.
func (b *Budget) Check(action string) error {
	if b.Remaining() <= 0 {
		return fmt.Errorf("%w: no time left for %s (budget %s)", ErrTimeout, action, b.total)
	}
	return nil
}

// Context derives a context that expires with the budget.
func (b *Budget) Context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithDeadline(parent, b.deadline)
}

// Classify turns deadline errors, and any outcome reached after the budget
// ran out, into ErrTimeout. An operation that exceeds its budget is failed
// regardless of what the driver reported.
func (b *Budget) Classify(err error) error {
	if errors.Is(err, ErrTimeout) {
		return err
	}
	exhausted := b.Remaining() <= 0
	switch {
	case err == nil && exhausted:
		return fmt.Errorf("%w: finished after the %s budget", ErrTimeout, b.total)
	case err == nil:
		return nil
	case exhausted || errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %s: %w", ErrTimeout, b.total, err)
	}
	return err
}
