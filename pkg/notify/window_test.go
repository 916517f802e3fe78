package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowAllowsUpToLimit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := NewWindow(3, time.Minute)
	w.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, snap := w.Allow()
		require.True(t, ok, "attempt %d should be admitted", i+1)
		assert.Equal(t, i+1, snap.Sent)
		assert.Equal(t, 3-(i+1), snap.Remaining)
	}

	ok, snap := w.Allow()
	require.False(t, ok)
	assert.Equal(t, 3, snap.Sent)
	assert.Equal(t, 0, snap.Remaining)
	assert.Equal(t, 3, snap.Limit)
	assert.Equal(t, int64(60_000), snap.ResetInMS)
}

func TestWindowSlidesAsAttemptsAge(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := NewWindow(2, time.Minute)
	w.now = func() time.Time { return now }

	ok, _ := w.Allow()
	require.True(t, ok)
	now = now.Add(30 * time.Second)
	ok, _ = w.Allow()
	require.True(t, ok)

	ok, snap := w.Allow()
	require.False(t, ok)
	assert.Equal(t, int64(30_000), snap.ResetInMS)

	// Once the first attempt ages past the interval a slot frees up.
	now = now.Add(31 * time.Second)
	ok, snap = w.Allow()
	require.True(t, ok)
	assert.Equal(t, 2, snap.Sent)
}

func TestWindowPeekDoesNotConsume(t *testing.T) {
	w := NewWindow(1, time.Minute)

	snap := w.Peek()
	assert.Equal(t, 0, snap.Sent)
	assert.Equal(t, 1, snap.Remaining)
	assert.Equal(t, int64(0), snap.ResetInMS)

	ok, _ := w.Allow()
	require.True(t, ok)
}

func TestWindowRejectionDoesNotConsume(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w := NewWindow(1, time.Minute)
	w.now = func() time.Time { return now }

	ok, _ := w.Allow()
	require.True(t, ok)

	// Rejected attempts are not recorded, so the window still frees one
	// slot when the single admitted attempt ages out.
	for i := 0; i < 5; i++ {
		ok, _ = w.Allow()
		require.False(t, ok)
	}

	now = now.Add(61 * time.Second)
	ok, snap := w.Allow()
	require.True(t, ok)
	assert.Equal(t, 1, snap.Sent)
}
