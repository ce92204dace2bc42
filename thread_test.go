package evrt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestThreadBeginInitEndInitAffiliatesCreatorGoroutine covers spec.md
// §4.7's begin_init/end_init pairing: an object constructed on the
// creator goroutine between BeginInit and EndInit affiliates with the
// not-yet-started thread's queue, and the creator goroutine's own
// current-queue state is restored afterward.
func TestThreadBeginInitEndInitAffiliatesCreatorGoroutine(t *testing.T) {
	th, err := NewThread()
	require.NoError(t, err)
	defer func() { _ = th.Free() }()

	require.Nil(t, CurrentMessageQueue())

	th.BeginInit()
	require.Same(t, th.Queue(), CurrentMessageQueue())
	obj := NewObject(th.Queue())
	require.True(t, IsSynchronous(obj.Weak()))
	th.EndInit()

	require.Nil(t, CurrentMessageQueue())
}

func TestThreadBeginInitEndInitRestoresPreviousQueue(t *testing.T) {
	outer, err := NewThread()
	require.NoError(t, err)
	defer func() { _ = outer.Free() }()
	inner, err := NewThread()
	require.NoError(t, err)
	defer func() { _ = inner.Free() }()

	setCurrentMessageQueue(outer.Queue())
	defer clearCurrentMessageQueue()

	inner.BeginInit()
	require.Same(t, inner.Queue(), CurrentMessageQueue())
	inner.EndInit()

	require.Same(t, outer.Queue(), CurrentMessageQueue())
}

// TestThreadStartJoinEmitsOnExit covers spec.md §4.7's worker lifecycle:
// Start runs entry on its own goroutine, Join blocks until it returns,
// and OnExit fires with the returned exit code.
func TestThreadStartJoinEmitsOnExit(t *testing.T) {
	th, err := NewThread()
	require.NoError(t, err)
	defer func() { _ = th.Free() }()

	var gotCode int
	var exited bool
	obj := NewObject(th.Queue())
	th.OnExit.Connect(obj, func(code *int) {
		exited = true
		gotCode = *code
	}, DeliveryAuto)

	th.Start(func(t *Thread) int {
		t.Exit()
		return 7
	})
	th.Join()

	// OnExit is emitted from the worker goroutine itself, which is also
	// obj's affiliated queue's own consumer goroutine, so DeliveryAuto
	// resolves to a direct synchronous call: no turn needs draining.
	require.True(t, exited)
	require.Equal(t, 7, gotCode)
}

func TestThreadJoinWithoutStartReturnsImmediately(t *testing.T) {
	th, err := NewThread()
	require.NoError(t, err)
	defer func() { _ = th.Free() }()

	done := make(chan struct{})
	go func() {
		th.Join()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Join blocked despite Start never being called")
	}
}

// TestPoolWaitPropagatesFirstError covers Pool/NewPool/Wait's
// errgroup-based fan-out and first-error propagation.
func TestPoolWaitPropagatesFirstError(t *testing.T) {
	sentinel := errors.New("boom")
	pool, err := NewPool(3, func(t *Thread) error {
		t.Exit()
		return sentinel
	})
	require.NoError(t, err)
	require.Len(t, pool.Threads(), 3)

	err = pool.Wait()
	require.ErrorIs(t, err, sentinel)
}

func TestPoolWaitSucceedsWhenNoEntryErrors(t *testing.T) {
	pool, err := NewPool(2, func(t *Thread) error {
		t.Exit()
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, pool.Wait())
}
