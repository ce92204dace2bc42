package evrt

import (
	"log/slog"
	"sync/atomic"
)

// MessageQueue wraps the atomic queue (queue.go) and the wakeup primitive
// (wakeup.go) behind a single per-thread structure, per spec.md §3
// "Message queue". Only the owning goroutine (a Thread's loop goroutine)
// consumes from it; any goroutine may produce.
type MessageQueue struct {
	q      mpscQueue
	woken  atomic.Bool
	loop   *Loop
	logger *slog.Logger
	closed atomic.Bool
}

// NewMessageQueue wraps loop with a MessageQueue, installing loop's wake
// handler to drain this queue whenever the loop's embedded wakeup fires.
// NewThread calls it once, when the Thread is constructed.
func NewMessageQueue(loop *Loop) *MessageQueue {
	mq := &MessageQueue{loop: loop, logger: slog.Default()}
	loop.setWakeHandler(mq.consume)
	registerAutoCreated(mq)
	return mq
}

// Loop returns the message queue's owned event loop.
func (mq *MessageQueue) Loop() *Loop { return mq.loop }

// Close marks the queue closed; further produce calls return
// ErrQueueClosed. Does not drain or discard anything already queued.
func (mq *MessageQueue) Close() { mq.closed.Store(true) }

// produce appends part to the tail of the queue, then performs the
// woken 0→1 transition: only the goroutine that performs that exact
// transition triggers the loop's wakeup, per spec.md §4.2's "Message
// delivery via D" paragraph. Safe to call from any goroutine.
func (mq *MessageQueue) produce(part *envelopePart) error {
	if mq.closed.Load() {
		return ErrQueueClosed
	}
	mq.q.push(part)
	if mq.woken.CompareAndSwap(false, true) {
		return mq.loop.WakeUp()
	}
	return nil
}

// consume is invoked from the loop's wake callback: it resets woken to 0
// before draining, guaranteeing any message enqueued after the drain
// begins either lands in this drain (if linked before the consumer
// observes empty) or causes a subsequent wakeup (because the enqueuer
// observed woken==0 and performed the 0→1 transition itself).
func (mq *MessageQueue) consume() {
	mq.woken.Store(false)
	mq.q.drain(func(part *envelopePart) {
		live := part.weak == nil || part.weak.IsLive()
		part.call(live)
		if part.weak != nil {
			part.weak.decRef()
			part.weak.decMsgRef()
		}
	})
}
