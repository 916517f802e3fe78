package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayDoubles(t *testing.T) {
	cfg := BackoffConfig{Base: time.Second, Max: time.Minute}

	assert.Equal(t, 1*time.Second, BackoffDelay(cfg, 0, 0))
	assert.Equal(t, 2*time.Second, BackoffDelay(cfg, 1, 0))
	assert.Equal(t, 4*time.Second, BackoffDelay(cfg, 2, 0))
	assert.Equal(t, 8*time.Second, BackoffDelay(cfg, 3, 0))
}

func TestBackoffDelayCapped(t *testing.T) {
	cfg := BackoffConfig{Base: time.Second, Max: 5 * time.Second}

	assert.Equal(t, 5*time.Second, BackoffDelay(cfg, 10, 0))
	// Jitter never pushes past the cap.
	assert.Equal(t, 5*time.Second, BackoffDelay(cfg, 10, 0.999))
}

func TestBackoffDelayJitterBounds(t *testing.T) {
	cfg := BackoffConfig{Base: 2 * time.Second, Max: time.Minute}

	min := BackoffDelay(cfg, 1, 0)
	max := BackoffDelay(cfg, 1, 0.999)

	assert.Equal(t, 4*time.Second, min)
	assert.GreaterOrEqual(t, max, min)
	assert.Less(t, max, min+time.Second) // jitter bounded by base/2
}

func TestBackoffDelayNegativeAttempt(t *testing.T) {
	cfg := BackoffConfig{Base: time.Second, Max: time.Minute}
	assert.Equal(t, time.Second, BackoffDelay(cfg, -3, 0))
}
