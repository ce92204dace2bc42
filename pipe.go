package evrt

// DeliveryMode selects how a Pipe or Signal target is invoked relative to
// the caller's thread, per spec.md §4.5/§4.6.
type DeliveryMode int

const (
	// DeliveryAuto invokes directly when the caller's queue matches the
	// target's affiliated queue, else copies the payload and enqueues.
	DeliveryAuto DeliveryMode = iota
	// DeliveryProxied always copies and enqueues, even same-thread.
	DeliveryProxied
	// DeliveryDirect always invokes synchronously, never enqueues.
	DeliveryDirect
)

// Pipe is a one-to-one typed channel bound to a single receiver object
// (spec.md §3 "Pipe" / §4.5). It is a value type: the zero value is an
// unbound pipe that silently drops every Send. Copying a Pipe (via Clone,
// Go has no assignment-operator hook) adjusts the receiver's weak-data
// refcount, matching the "copy pipe" contract.
type Pipe[T any] struct {
	delegate func(*T)
	weak     *WeakData
}

// Set binds p to delegate/receiver's weak data, dropping any previous
// binding's ref. Passing a nil receiver unbinds the pipe.
func (p *Pipe[T]) Set(delegate func(*T), receiver *Object) {
	p.unbindLocked()
	p.delegate = delegate
	if receiver != nil {
		p.weak = receiver.Weak()
		p.weak.incRef()
	}
}

// Clone returns a copy of p with the receiver's weak-data ref count
// incremented, per spec.md §4.5's "copy pipe" contract. Use this instead
// of `=` assignment, since Go has no copy-constructor hook to perform the
// ref adjustment automatically.
func (p Pipe[T]) Clone() Pipe[T] {
	if p.weak != nil {
		p.weak.incRef()
	}
	return p
}

// Unset drops p's binding (if any), releasing the receiver's weak-data
// ref. Safe to call on an already-unbound pipe.
func (p *Pipe[T]) Unset() {
	p.unbindLocked()
}

func (p *Pipe[T]) unbindLocked() {
	if p.weak != nil {
		p.weak.decRef()
	}
	p.delegate = nil
	p.weak = nil
}

// bound reports whether p currently has a live target: non-nil weak data
// whose object has not been destroyed.
func (p *Pipe[T]) bound() bool {
	return p.weak != nil && p.weak.IsLive()
}

// Send delivers payload using DeliveryAuto semantics: direct invocation
// if the caller's current queue matches the receiver's affiliated queue,
// else a copy-and-enqueue.
func (p *Pipe[T]) Send(payload T) error {
	return p.send(payload, DeliveryAuto)
}

// SendProxied always copies payload into a one-part envelope and
// enqueues it, even when the receiver shares the caller's queue.
func (p *Pipe[T]) SendProxied(payload T) error {
	return p.send(payload, DeliveryProxied)
}

// SendDirect invokes the delegate synchronously with payload, regardless
// of which thread is calling. Never enqueues. No-op if unbound or the
// receiver has been destroyed.
func (p *Pipe[T]) SendDirect(payload T) error {
	if !p.bound() {
		return nil
	}
	p.delegate(&payload)
	return nil
}

func (p *Pipe[T]) send(payload T, mode DeliveryMode) error {
	if !p.bound() {
		return nil
	}
	if mode == DeliveryAuto && IsSynchronous(p.weak) {
		p.delegate(&payload)
		return nil
	}

	env, v := newSingleEnvelope(payload, 1)
	part := newPart(env, p.weak, v, p.delegate)
	mq := p.weak.Queue()
	if mq == nil {
		env.release()
		return nil
	}
	enqueueTo(mq, p.weak, part)
	return nil
}
