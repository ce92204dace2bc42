package evrt

import (
	"container/heap"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerHeapOrdersByNextFire(t *testing.T) {
	var h timerHeap
	now := time.Now()
	a := &Event{nextFire: now.Add(30 * time.Millisecond), seq: 1}
	b := &Event{nextFire: now.Add(10 * time.Millisecond), seq: 2}
	c := &Event{nextFire: now.Add(20 * time.Millisecond), seq: 3}
	heap.Push(&h, a)
	heap.Push(&h, b)
	heap.Push(&h, c)

	var order []uint64
	for h.Len() > 0 {
		order = append(order, heap.Pop(&h).(*Event).seq)
	}
	require.Equal(t, []uint64{2, 3, 1}, order)
}

// TestTimerHeapFIFOAtEqualDeadline covers spec.md §4.1's "upper-bound
// search" requirement: timers sharing a next-fire instant dispatch in
// FIFO insertion order, via the monotonic seq tiebreaker.
func TestTimerHeapFIFOAtEqualDeadline(t *testing.T) {
	var h timerHeap
	now := time.Now()
	a := &Event{nextFire: now, seq: 5}
	b := &Event{nextFire: now, seq: 6}
	c := &Event{nextFire: now, seq: 7}
	heap.Push(&h, c)
	heap.Push(&h, a)
	heap.Push(&h, b)

	var order []uint64
	for h.Len() > 0 {
		order = append(order, heap.Pop(&h).(*Event).seq)
	}
	require.Equal(t, []uint64{5, 6, 7}, order)
}

func TestTimerHeapRemoveKeepsHeapConsistent(t *testing.T) {
	var h timerHeap
	now := time.Now()
	events := make([]*Event, 5)
	for i := range events {
		events[i] = &Event{nextFire: now.Add(time.Duration(i) * time.Millisecond), seq: uint64(i)}
		heap.Push(&h, events[i])
	}
	heap.Remove(&h, events[2].heapIdx)
	require.Equal(t, 4, h.Len())

	var order []uint64
	for h.Len() > 0 {
		order = append(order, heap.Pop(&h).(*Event).seq)
	}
	require.Equal(t, []uint64{0, 1, 3, 4}, order)
}
