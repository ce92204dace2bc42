package evrt

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// WeakData is the small shared record described in spec.md §3/§4.4: a
// stable identity for an Object that survives cross-thread races and
// outlives both the Object itself (because in-flight messages still
// reference it) and any single Pipe/Signal target holding it.
//
// ref counts "any reference at all": the Object holds one from the moment
// its weak data is created until Destroy, and every Pipe/Signal binding
// and in-flight part holds one more. Once it drops to zero nothing but the
// destroyed Object still points at this record, and the record becomes
// unreachable for the garbage collector to reclaim (there is no explicit
// free to perform in Go the way spec.md's originating C does — see
// DESIGN.md's Open Questions). msgRef counts "references that expect the
// affiliated queue to still exist" — in-flight envelope parts hold both;
// Pipe/Signal bindings hold only ref. Dropping msgRef to zero while ref
// is also zero releases this record's hold on its affiliated queue (see
// releaseQueueIfIdle).
type WeakData struct {
	object atomic.Pointer[Object]       // back-pointer; nulled exactly once, never revived
	queue  atomic.Pointer[MessageQueue] // affiliated queue; nulled once idle, never revived

	ref    atomic.Int64
	msgRef atomic.Int64
}

// IsLive reports whether the back-pointer is still non-null, i.e. the
// owning Object has not yet been destroyed.
func (w *WeakData) IsLive() bool {
	return w != nil && w.object.Load() != nil
}

// Queue returns the affiliated message queue this weak data was created
// against, or nil once both ref and msgRef have dropped to zero.
func (w *WeakData) Queue() *MessageQueue {
	if w == nil {
		return nil
	}
	return w.queue.Load()
}

func (w *WeakData) incRef() { w.ref.Add(1) }

func (w *WeakData) decRef() {
	if w.ref.Add(-1) == 0 {
		w.releaseQueueIfIdle()
	}
}

func (w *WeakData) incMsgRef() { w.msgRef.Add(1) }

func (w *WeakData) decMsgRef() {
	if w.msgRef.Add(-1) == 0 {
		w.releaseQueueIfIdle()
	}
}

// releaseQueueIfIdle drops this weak data's hold on its affiliated queue
// once nothing references it any more and no in-flight message still
// expects the queue to exist (spec.md §4.4: msgRef dropping to zero "is
// the signal to release the queue's strong ref"). Once released, Queue()
// reports nil exactly as it would for a weak data that was never
// affiliated — every caller already treats that as "drop this delivery".
func (w *WeakData) releaseQueueIfIdle() {
	if w.ref.Load() == 0 && w.msgRef.Load() == 0 {
		w.queue.Store(nil)
	}
}

// Object is a heap-allocated unit of application state pinned to exactly
// one MessageQueue for its lifetime (spec.md §3 "Object"). It owns no
// event loop itself; it is affiliated with one via its MessageQueue.
type Object struct {
	id    uuid.UUID
	queue *MessageQueue

	weakOnce sync.Once
	weak     *WeakData

	destroyed atomic.Bool
}

// NewObject constructs an Object affiliated with queue. queue must not be
// nil and never changes for the object's lifetime.
func NewObject(queue *MessageQueue) *Object {
	if queue == nil {
		panic("evrt: NewObject requires a non-nil MessageQueue")
	}
	return &Object{id: uuid.New(), queue: queue}
}

// ID returns this object's stable identity, used for logging/tracing.
func (o *Object) ID() uuid.UUID { return o.id }

// Queue returns the object's affiliated message queue.
func (o *Object) Queue() *MessageQueue { return o.queue }

// Weak lazily creates (on first call) and returns the object's weak data.
// Safe to call from any goroutine.
func (o *Object) Weak() *WeakData {
	o.weakOnce.Do(func() {
		w := &WeakData{}
		w.object.Store(o)
		w.queue.Store(o.queue)
		w.ref.Store(1) // the Object's own reference, dropped by Destroy
		o.weak = w
	})
	return o.weak
}

// Destroy nulls the back-pointer of this object's weak data (if any was
// ever published), making the object unreachable from pipes, signals and
// in-flight messages from this point on. It must run on the goroutine
// that is the object's affiliated queue's consumer goroutine; calling it
// elsewhere returns ErrWrongThread and does nothing.
//
// Destroy is idempotent: calling it twice is a no-op on the second call.
func (o *Object) Destroy() error {
	if CurrentMessageQueue() != o.queue {
		return ErrWrongThread
	}
	if o.destroyed.Swap(true) {
		return nil
	}
	w := o.Weak()
	// One-way transition: non-null -> null, exactly once. CompareAndSwap
	// guards against a theoretical concurrent second Destroy slipping past
	// the destroyed flag under race conditions in caller code.
	w.object.CompareAndSwap(o, nil)
	w.decRef() // drop the Object's own reference
	return nil
}
