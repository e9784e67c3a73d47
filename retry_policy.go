package netguard

import (
	"context"
	"errors"
	"time"

	"github.com/ambiyansyah-risyal/netguard/internal/backoff"
)

// RetryPolicy decides whether a failed attempt is tried again and how long
// to wait first. attempt is zero based and counts retries already made.
type RetryPolicy interface {
	ShouldRetry(attempt int, err error) (time.Duration, bool)
}

// limitedRetryPolicy retries every failure up to a fixed limit, asking its
// strategy for the wait.
type limitedRetryPolicy struct {
	limit    int
	strategy backoff.Strategy
}

func newLimitedRetryPolicy(limit int, strategy backoff.Strategy) limitedRetryPolicy {
	if limit < 0 {
		limit = 0
	}
	return limitedRetryPolicy{limit: limit, strategy: strategy}
}

// Limit returns the maximum number of retries.
func (p *limitedRetryPolicy) Limit() int {
	return p.limit
}

// ShouldRetry implements the RetryPolicy interface.
func (p *limitedRetryPolicy) ShouldRetry(attempt int, err error) (time.Duration, bool) {
	if attempt >= p.limit {
		return 0, false
	}
	// A cancelled request has no caller left to retry for.
	if errors.Is(err, context.Canceled) {
		return 0, false
	}
	return p.strategy.Delay(attempt), true
}

// ExponentialRetryPolicy retries every failure up to a fixed limit, waiting
// base^attempt * scale between tries.
type ExponentialRetryPolicy struct {
	limitedRetryPolicy
}

// NewExponentialRetryPolicy creates a policy allowing limit retries.
func NewExponentialRetryPolicy(limit int, base float64, scale time.Duration) *ExponentialRetryPolicy {
	return &ExponentialRetryPolicy{newLimitedRetryPolicy(limit, backoff.Exponential{Base: base, Scale: scale})}
}

// ConstantRetryPolicy retries every failure up to a fixed limit, waiting
// interval before each retry.
type ConstantRetryPolicy struct {
	limitedRetryPolicy
}

// NewConstantRetryPolicy creates a policy allowing limit retries.
func NewConstantRetryPolicy(limit int, interval time.Duration) *ConstantRetryPolicy {
	return &ConstantRetryPolicy{newLimitedRetryPolicy(limit, backoff.Constant{Interval: interval})}
}

// NoRetryPolicy never retries.
type NoRetryPolicy struct{}

// ShouldRetry implements the RetryPolicy interface.
func (NoRetryPolicy) ShouldRetry(int, error) (time.Duration, bool) {
	return 0, false
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
