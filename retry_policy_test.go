package netguard

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

const errFmtUnexpectedDelay = "attempt %d: expected delay %v, got %v"

func TestNewExponentialRetryPolicy(t *testing.T) {
	policy := NewExponentialRetryPolicy(3, 2.0, 1500*time.Millisecond)
	if policy.Limit() != 3 {
		t.Errorf("Expected limit=3, got %d", policy.Limit())
	}

	negative := NewExponentialRetryPolicy(-1, 2.0, time.Second)
	if negative.Limit() != 0 {
		t.Errorf("Expected negative limit to clamp to 0, got %d", negative.Limit())
	}
}

func TestExponentialRetryPolicyDelays(t *testing.T) {
	policy := NewExponentialRetryPolicy(3, 2.0, 1500*time.Millisecond)
	failure := errors.New("connection reset")

	expected := []time.Duration{1500 * time.Millisecond, 3 * time.Second, 6 * time.Second}
	for attempt, want := range expected {
		delay, retry := policy.ShouldRetry(attempt, failure)
		if !retry {
			t.Fatalf("attempt %d: expected retry", attempt)
		}
		if delay != want {
			t.Errorf(errFmtUnexpectedDelay, attempt, want, delay)
		}
	}

	if _, retry := policy.ShouldRetry(3, failure); retry {
		t.Error("Expected no retry once the limit is reached")
	}
}

func TestExponentialRetryPolicyZeroLimit(t *testing.T) {
	policy := NewExponentialRetryPolicy(0, 2.0, time.Second)
	if _, retry := policy.ShouldRetry(0, errors.New("boom")); retry {
		t.Error("Expected no retry with limit 0")
	}
}

func TestExponentialRetryPolicyUniformAcrossFailures(t *testing.T) {
	policy := NewExponentialRetryPolicy(2, 2.0, 10*time.Millisecond)
	failures := []error{
		errors.New("plain"),
		&TransportError{Failure: FailureValidation},
		&TransportError{Failure: FailureTimeout},
		fmt.Errorf("wrapped: %w", context.DeadlineExceeded),
	}
	for _, failure := range failures {
		delay, retry := policy.ShouldRetry(1, failure)
		if !retry || delay != 20*time.Millisecond {
			t.Errorf("%v: expected retry after 20ms, got %v/%v", failure, delay, retry)
		}
	}
}

func TestExponentialRetryPolicyCancelled(t *testing.T) {
	policy := NewExponentialRetryPolicy(3, 2.0, time.Millisecond)
	err := &TransportError{Failure: FailureCancelled, Err: context.Canceled}
	if _, retry := policy.ShouldRetry(0, err); retry {
		t.Error("Expected no retry for a cancelled request")
	}
}

func TestConstantRetryPolicy(t *testing.T) {
	policy := NewConstantRetryPolicy(2, 250*time.Millisecond)
	if policy.Limit() != 2 {
		t.Errorf("Expected limit=2, got %d", policy.Limit())
	}
	failure := &TransportError{Failure: FailureNetwork}
	for attempt := 0; attempt < 2; attempt++ {
		delay, retry := policy.ShouldRetry(attempt, failure)
		if !retry || delay != 250*time.Millisecond {
			t.Errorf(errFmtUnexpectedDelay, attempt, 250*time.Millisecond, delay)
		}
	}
	if _, retry := policy.ShouldRetry(2, failure); retry {
		t.Error("Expected no retry once the limit is reached")
	}
	if _, retry := policy.ShouldRetry(0, context.Canceled); retry {
		t.Error("Expected no retry for a cancelled request")
	}
}

func TestNoRetryPolicy(t *testing.T) {
	if _, retry := (NoRetryPolicy{}).ShouldRetry(0, errors.New("x")); retry {
		t.Error("NoRetryPolicy must never retry")
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := sleepContext(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleepContext did not return promptly on cancellation")
	}
}
