package evrt

import "sync/atomic"

// envelope is the allocation shared by a message payload and one or more
// parts (one per intended recipient), per spec.md §3 "Message envelope".
// Its strong reference count equals the number of live parts; the
// payload's destructor (if any) runs exactly once, when the last part is
// consumed.
type envelope struct {
	ref     atomic.Int32
	destroy func() // optional payload destructor; nil for payloads with no external cleanup
}

// release drops one part's hold on env, running destroy exactly once when
// the last part is gone.
func (env *envelope) release() {
	if env.ref.Add(-1) == 0 && env.destroy != nil {
		env.destroy()
	}
}

// newPart builds an envelopePart that, when delivered, invokes delegate
// with valuePtr if the recipient is still live, then releases env's
// refcount. weak may be nil for deliveries that bypass liveness tracking
// entirely (never used for cross-queue delivery, only as a building
// block shared by pipe.go/signal.go which always supply a concrete
// *WeakData).
func newPart[T any](env *envelope, weak *WeakData, valuePtr *T, delegate func(*T)) *envelopePart {
	part := &envelopePart{weak: weak, env: env}
	part.call = func(live bool) {
		if live && delegate != nil {
			delegate(valuePtr)
		}
		env.release()
	}
	return part
}

// newSingleEnvelope copy-constructs payload once and returns an envelope
// plus pointer to the copy, ref-counted for n intended parts.
func newSingleEnvelope[T any](payload T, n int) (*envelope, *T) {
	v := payload
	env := &envelope{}
	env.ref.Store(int32(n))
	return env, &v
}

// deliverLocal invokes part.call under the assumption the recipient is
// still live, i.e. liveness was already checked by the caller. Nothing in
// this package calls it: Pipe and Signal invoke the delegate directly for
// same-queue delivery.
func deliverLocal(part *envelopePart) {
	part.call(true)
}

// enqueueTo links part into queue's affiliated message queue and wakes
// its loop if necessary. It also arms the part's weak-data bookkeeping:
// the in-flight message holds both a strong ref and a msgRef on weak
// until it is consumed.
func enqueueTo(mq *MessageQueue, weak *WeakData, part *envelopePart) {
	weak.incRef()
	weak.incMsgRef()
	mq.produce(part)
}
