package backoff

import (
	"math/rand"
	"time"
)

// jitterFraction is the upper bound of the uniform jitter window,
// expressed as a fraction of the computed delay.
const jitterFraction = 0.1

// Strategy computes the pause between retry attempts.
type Strategy interface {
	// Delay returns the pause taken after the given failed attempt
	// (1-indexed), i.e. the delay that precedes attempt+1.
	Delay(attempt int, base time.Duration, factor float64, jitter bool) time.Duration
}

// Exponential grows the delay geometrically: the pause after attempt n is
// base * factor^(n-1), optionally extended by a uniform random amount in
// [0, 10% of the delay].
type Exponential struct{}

// Delay implements Strategy.
func (Exponential) Delay(attempt int, base time.Duration, factor float64, jitter bool) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Cap the exponent so the float math cannot overflow into negatives.
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(base) * Pow(factor, attempt-1))
	if delay < 0 {
		delay = base
	}

	if jitter && delay > 0 {
		delay += time.Duration(rand.Float64() * jitterFraction * float64(delay))
	}
	return delay
}

// Pow calculates base^exponent using integer exponentiation.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
