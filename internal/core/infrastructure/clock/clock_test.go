package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSystemClockMonotonicSince(t *testing.T) {
	c := NewSystemClock()

	start := c.Now()
	require.False(t, start.IsZero())
	require.GreaterOrEqual(t, c.Since(start), time.Duration(0))
	require.LessOrEqual(t, start.Unix(), c.Unix())
}

func TestMockClockAdvance(t *testing.T) {
	initial := time.UnixMilli(1_700_000_000_000)
	c := NewMockClock(initial)

	require.Equal(t, initial, c.Now())

	c.Advance(42 * time.Second)
	require.Equal(t, initial.Add(42*time.Second), c.Now())
	require.Equal(t, 42*time.Second, c.Since(initial))
}
