package evrt

// timerHeap is a container/heap-compatible slice of *Event ordered by
// nextFire, with insertion sequence as a tiebreaker so timers sharing a
// next-fire time dispatch in FIFO insertion order (spec.md §4.1 "upper-
// bound search", §8 property 5). This is gaio's timedHeap (watcher.go)
// generalized with the sequence tiebreaker spec.md requires and gaio's
// plain deadline-only ordering does not provide.
type timerHeap []*Event

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].nextFire.Equal(h[j].nextFire) {
		return h[i].seq < h[j].seq
	}
	return h[i].nextFire.Before(h[j].nextFire)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*Event)
	e.heapIdx = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIdx = -1
	*h = old[:n-1]
	return e
}
