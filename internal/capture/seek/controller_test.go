package seek

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/babelcloud/vidcap/internal/capture/sourcetest"
)

func TestController_EpsilonFastPath(t *testing.T) {
	// No confirmations are ever emitted, so a wait would hit the timeout.
	src := sourcetest.New(sourcetest.Config{Duration: 10 * time.Second})
	src.Seed(1 * time.Second)

	c := New()
	start := time.Now()
	confirmed := c.SeekTo(src, 1*time.Second+50*time.Millisecond, time.Second)

	assert.True(t, confirmed)
	assert.Less(t, time.Since(start), 200*time.Millisecond, "near target resolves without waiting")
	assert.Equal(t, 1, src.SeekRequests(), "the move is still issued")
}

func TestController_ConfirmedSeek(t *testing.T) {
	src := sourcetest.New(sourcetest.Config{
		Duration:     10 * time.Second,
		ConfirmSeeks: true,
		SeekLatency:  5 * time.Millisecond,
	})

	c := New()
	confirmed := c.SeekTo(src, 3*time.Second, time.Second)

	assert.True(t, confirmed)
	assert.Equal(t, 3*time.Second, src.Position())
	assert.Equal(t, 1, src.SeekRequests())
}

func TestController_TimeoutIsAdvisory(t *testing.T) {
	src := sourcetest.New(sourcetest.Config{
		Duration:     10 * time.Second,
		ConfirmSeeks: false,
	})

	c := New()
	start := time.Now()
	confirmed := c.SeekTo(src, 5*time.Second, 40*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, confirmed, "unconfirmed seek reports false")
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)

	// The move itself still happened, best-effort.
	assert.Eventually(t, func() bool {
		return src.Position() == 5*time.Second
	}, time.Second, 5*time.Millisecond)
}

func TestController_IgnoresStaleConfirmation(t *testing.T) {
	src := sourcetest.New(sourcetest.Config{
		Duration:     10 * time.Second,
		ConfirmSeeks: true,
		SeekLatency:  20 * time.Millisecond,
	})
	// A leftover confirmation from an earlier move sits in the channel.
	src.ConfirmAt(500 * time.Millisecond)

	c := New()
	confirmed := c.SeekTo(src, 4*time.Second, time.Second)

	assert.True(t, confirmed)
	assert.Equal(t, 4*time.Second, src.Position())
}
