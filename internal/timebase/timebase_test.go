package timebase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTickSchedule_FloorBasedCount(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ticks := TickSchedule(start, time.Second, 10*time.Second)
	require.Len(t, ticks, 10)
	require.Equal(t, start, ticks[0])
	require.Equal(t, start.Add(9*time.Second), ticks[9])

	// floor(7/2) = 3 ticks
	ticks = TickSchedule(start, 2*time.Second, 7*time.Second)
	require.Len(t, ticks, 3)
	require.Equal(t, start.Add(4*time.Second), ticks[2])
}

func TestSystemClock_Now(t *testing.T) {
	before := time.Now()
	got := SystemClock{}.Now()
	require.False(t, got.Before(before))
}
