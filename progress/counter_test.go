package progress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounterSetAndStart(t *testing.T) {
	var c Counter
	c.Set(10)
	require.Equal(t, int64(10), c.Total())
	require.Equal(t, int64(10), c.Pending())
	require.NoError(t, c.CheckInvariant())

	c.Start(4)
	require.Equal(t, int64(6), c.Pending())
	require.Equal(t, int64(4), c.Running())
	require.NoError(t, c.CheckInvariant())
}

func TestCounterCompletedFailedAbortedLost(t *testing.T) {
	var c Counter
	c.Set(5)
	c.Start(5)
	require.NoError(t, c.CheckInvariant())

	c.Completed(2)
	require.Equal(t, int64(2), c.Completed())
	require.Equal(t, int64(3), c.Running())
	require.NoError(t, c.CheckInvariant())

	c.Failed(1)
	require.Equal(t, int64(1), c.Failed())
	require.Equal(t, int64(2), c.Running())
	require.Equal(t, int64(1), c.Pending())
	require.NoError(t, c.CheckInvariant())

	c.Aborted(1)
	require.Equal(t, int64(1), c.Aborted())
	require.Equal(t, int64(1), c.Running())
	require.Equal(t, int64(2), c.Pending())
	require.NoError(t, c.CheckInvariant())

	c.Completed(1)
	require.Equal(t, int64(3), c.Completed())
	require.Equal(t, int64(0), c.Running())
	require.NoError(t, c.CheckInvariant())

	c.Lost(1)
	require.Equal(t, int64(1), c.Lost())
	require.Equal(t, int64(2), c.Completed())
	require.Equal(t, int64(3), c.Pending())
	require.NoError(t, c.CheckInvariant())
}

func TestCounterIsCompleted(t *testing.T) {
	var c Counter
	c.Set(3)
	require.False(t, c.IsCompleted())
	c.Start(3)
	c.Completed(3)
	require.True(t, c.IsCompleted())
}

func TestCounterIncrementGrowsTotalAndPending(t *testing.T) {
	var c Counter
	c.Set(2)
	c.Increment(3)
	require.Equal(t, int64(5), c.Total())
	require.Equal(t, int64(5), c.Pending())
}

func TestCounterSuspendResume(t *testing.T) {
	var c Counter
	c.Set(4)
	c.Suspend(2)
	require.Equal(t, int64(2), c.Suspended())
	c.Resume(1)
	require.Equal(t, int64(1), c.Suspended())
}

func TestCounterInvariantViolationDetected(t *testing.T) {
	var c Counter
	c.Set(5)
	c.total = 6
	require.Error(t, c.CheckInvariant())
}
