package store

import (
	"math/rand"
	"time"
)

// ThrottleBackoff bounds how long a throttled renew/finish retry sleeps
// before trying again, so "retry indefinitely" (spec §4.D, §4.E) doesn't
// hot-loop against a store that is already rejecting requests for capacity
// reasons. Adapted from the teacher's RetryPolicy.CalculateBackoff formula:
// exponential growth from an initial backoff, capped, with jitter.
type ThrottleBackoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64
}

// DefaultThrottleBackoff mirrors the teacher's retry defaults, scaled down
// for a store call instead of a whole task retry.
var DefaultThrottleBackoff = ThrottleBackoff{
	Initial: 100 * time.Millisecond,
	Max:     5 * time.Second,
	Factor:  2.0,
	Jitter:  0.2,
}

// Next returns the delay to sleep before retry attempt N (1-indexed).
func (b ThrottleBackoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	backoff := float64(b.Initial)
	for i := 1; i < attempt; i++ {
		backoff *= b.Factor
		if backoff > float64(b.Max) {
			backoff = float64(b.Max)
			break
		}
	}

	if b.Jitter > 0 {
		delta := backoff * b.Jitter
		backoff = backoff - delta + rand.Float64()*2*delta
	}

	if backoff < 0 {
		backoff = 0
	}
	if time.Duration(backoff) > b.Max {
		return b.Max
	}
	return time.Duration(backoff)
}
