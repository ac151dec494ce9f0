package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottleBackoff_Next_Grows(t *testing.T) {
	b := ThrottleBackoff{Initial: 100 * time.Millisecond, Max: 2 * time.Second, Factor: 2.0, Jitter: 0}

	assert.Equal(t, 100*time.Millisecond, b.Next(1))
	assert.Equal(t, 200*time.Millisecond, b.Next(2))
	assert.Equal(t, 400*time.Millisecond, b.Next(3))
}

func TestThrottleBackoff_Next_CapsAtMax(t *testing.T) {
	b := ThrottleBackoff{Initial: 1 * time.Second, Max: 2 * time.Second, Factor: 4.0, Jitter: 0}

	assert.Equal(t, 2*time.Second, b.Next(5))
}

func TestThrottleBackoff_Next_JitterStaysInRange(t *testing.T) {
	b := ThrottleBackoff{Initial: 1 * time.Second, Max: 10 * time.Second, Factor: 2.0, Jitter: 0.5}

	for i := 0; i < 20; i++ {
		d := b.Next(1)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestThrottleBackoff_Next_BelowOneTreatedAsOne(t *testing.T) {
	b := ThrottleBackoff{Initial: 100 * time.Millisecond, Max: 2 * time.Second, Factor: 2.0, Jitter: 0}

	assert.Equal(t, b.Next(1), b.Next(0))
	assert.Equal(t, b.Next(1), b.Next(-3))
}
