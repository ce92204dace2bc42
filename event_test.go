package evrt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLoop(t testing.TB) *Loop {
	t.Helper()
	loop, err := NewLoop()
	require.NoError(t, err)
	return loop
}

func TestEventEnableDisableTickRegistersInHeap(t *testing.T) {
	loop := newTestLoop(t)
	e := loop.NewTick(5*time.Millisecond, func(*Event) {})

	require.NoError(t, e.Enable(FlagTick))
	require.Equal(t, 1, loop.timers.Len())

	require.NoError(t, e.Disable(FlagTick))
	require.Equal(t, 0, loop.timers.Len())
}

func TestEventFreeTickRemovesFromHeap(t *testing.T) {
	loop := newTestLoop(t)
	e := loop.NewTick(5*time.Millisecond, func(*Event) {})
	require.NoError(t, e.Enable(FlagTick))
	require.NoError(t, e.Free())
	require.Equal(t, 0, loop.timers.Len())
}

// TestEventDisableIdleAdjustsCursor covers spec.md §4.1's round-robin
// idle dispatch: disabling an idle task must not cause the next
// still-enabled task to be skipped on the following round.
func TestEventDisableIdleAdjustsCursor(t *testing.T) {
	loop := newTestLoop(t)
	var order []string
	a := loop.NewIdle(func(*Event) { order = append(order, "a") })
	b := loop.NewIdle(func(*Event) { order = append(order, "b") })
	c := loop.NewIdle(func(*Event) { order = append(order, "c") })
	require.NoError(t, a.Enable(FlagIdle))
	require.NoError(t, b.Enable(FlagIdle))
	require.NoError(t, c.Enable(FlagIdle))

	loop.dispatchNextIdle() // a
	require.NoError(t, b.Disable(FlagIdle))
	loop.dispatchNextIdle() // c, not skipped by b's removal
	loop.dispatchNextIdle() // wraps back to a

	require.Equal(t, []string{"a", "c", "a"}, order)
}

func TestEventOperationsAfterFreeReturnErrEventFreed(t *testing.T) {
	loop := newTestLoop(t)
	e := loop.NewIdle(func(*Event) {})
	require.NoError(t, e.Free())
	require.ErrorIs(t, e.Enable(FlagIdle), ErrEventFreed)
	require.ErrorIs(t, e.Disable(FlagIdle), ErrEventFreed)
	require.ErrorIs(t, e.Reset(), ErrEventFreed)
}

func TestEventResetRearmsTick(t *testing.T) {
	loop := newTestLoop(t)
	e := loop.NewTick(time.Hour, func(*Event) {})
	require.NoError(t, e.Enable(FlagTick))
	before := e.nextFire

	require.NoError(t, e.Reset())
	require.Equal(t, 1, loop.timers.Len())
	require.True(t, e.nextFire.After(before) || e.nextFire.Equal(before))
}
