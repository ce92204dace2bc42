package evrt

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueDrainConsumesAllSingleProducer(t *testing.T) {
	var q mpscQueue
	const n = 1000

	for i := 0; i < n; i++ {
		q.push(&envelopePart{call: func(bool) {}})
	}

	seen := 0
	q.drain(func(*envelopePart) { seen++ })
	require.Equal(t, n, seen)

	// queue is empty now; a further drain sees nothing.
	seen = 0
	q.drain(func(*envelopePart) { seen++ })
	require.Zero(t, seen)
}

func TestQueueNoLostMessagesConcurrentProducers(t *testing.T) {
	var q mpscQueue
	const producers = 8
	const perProducer = 2000

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.push(&envelopePart{call: func(bool) {}})
			}
		}()
	}
	wg.Wait()

	total := 0
	for {
		n := 0
		q.drain(func(*envelopePart) { n++ })
		if n == 0 {
			break
		}
		total += n
	}
	require.Equal(t, producers*perProducer, total)
}

func TestQueuePreservesPerProducerOrder(t *testing.T) {
	var q mpscQueue
	const n = 500

	order := make(chan int, n)
	for i := 0; i < n; i++ {
		i := i
		q.push(&envelopePart{call: func(bool) { order <- i }})
	}
	q.drain(func(part *envelopePart) { part.call(true) })
	close(order)

	want := 0
	for got := range order {
		require.Equal(t, want, got)
		want++
	}
	require.Equal(t, n, want)
}
