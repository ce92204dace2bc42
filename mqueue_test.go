package evrt

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestMessageQueue(t testing.TB) *MessageQueue {
	t.Helper()
	loop, err := NewLoop()
	require.NoError(t, err)
	return NewMessageQueue(loop)
}

func TestMessageQueueProduceConsume(t *testing.T) {
	mq := newTestMessageQueue(t)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, mq.produce(&envelopePart{call: func(live bool) {
			if live {
				got = append(got, i)
			}
		}}))
	}

	require.NoError(t, mq.Loop().RunTurn())
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestMessageQueueClosedRejectsProduce(t *testing.T) {
	mq := newTestMessageQueue(t)
	mq.Close()
	err := mq.produce(&envelopePart{call: func(bool) {}})
	require.ErrorIs(t, err, ErrQueueClosed)
}

// TestMessageQueueWakeupCoalesces exercises spec.md's "only the 0->1
// transition wakes the loop" rule: many concurrent producers racing to
// enqueue against one quiescent queue must not each trigger their own
// wakeup (which would otherwise pile up spurious loop iterations).
func TestMessageQueueWakeupCoalesces(t *testing.T) {
	mq := newTestMessageQueue(t)

	const producers = 64
	var wg sync.WaitGroup
	wg.Add(producers)
	var delivered sync.WaitGroup
	delivered.Add(producers)
	for i := 0; i < producers; i++ {
		go func() {
			defer wg.Done()
			require.NoError(t, mq.produce(&envelopePart{call: func(bool) { delivered.Done() }}))
		}()
	}
	wg.Wait()

	// every producer finished before the drain, so the single coalesced
	// wakeup's turn delivers all of them; a further turn would block.
	if err := mq.Loop().RunTurn(); err != nil {
		t.Fatal(err)
	}
	delivered.Wait()
}
