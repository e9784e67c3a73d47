package backoff

import (
	"math"
	"time"
)

// Strategy returns the wait before the retry that follows a failed attempt.
// attempt is zero based: 0 is the wait before the second overall try.
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Exponential grows the delay as Base^attempt * Scale, without jitter.
type Exponential struct {
	Base  float64
	Scale time.Duration
}

// maxAttempt bounds the exponent so the float product stays finite.
const maxAttempt = 62

// Delay implements Strategy.
func (e Exponential) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxAttempt {
		attempt = maxAttempt
	}
	d := float64(e.Scale) * Pow(e.Base, attempt)
	if d <= 0 || math.IsNaN(d) {
		return 0
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Constant waits the same interval before every retry.
type Constant struct {
	Interval time.Duration
}

// Delay implements Strategy.
func (c Constant) Delay(int) time.Duration {
	if c.Interval < 0 {
		return 0
	}
	return c.Interval
}

// Pow calculates base^exponent for a non-negative integer exponent.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
