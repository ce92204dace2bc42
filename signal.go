package evrt

import (
	"sync"
	"sync/atomic"
)

// signalTarget is one connected recipient of a Signal[T], per spec.md §3
// "Signal": delegate, the recipient's weak data, and the delivery mode
// chosen at connect time.
type signalTarget[T any] struct {
	delegate func(*T)
	weak     *WeakData
	mode     DeliveryMode
}

// Signal is a one-to-many fan-out primitive (spec.md §3 "Signal" / §4.6).
// Connect/Disconnect build a new immutable target slice under a short
// mutex; Emit takes the current slice pointer (a single atomic load) and
// iterates it without ever touching the mutex, so emit never blocks a
// concurrent connect/disconnect and vice versa.
type Signal[T any] struct {
	mu      sync.Mutex
	targets []signalTarget[T] // guarded by mu; replaced wholesale on every connect/disconnect
	snap    atomic.Pointer[[]signalTarget[T]]
}

func (s *Signal[T]) store(v []signalTarget[T]) { s.snap.Store(&v) }

func (s *Signal[T]) load() []signalTarget[T] {
	p := s.snap.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Connect appends a new target for receiver, pruning any already-dead
// entries from the vector in the same rebuild (spec.md §4.6's "garbage
// collection in-line"). receiver must not be nil.
func (s *Signal[T]) Connect(receiver *Object, delegate func(*T), mode DeliveryMode) {
	weak := receiver.Weak()
	weak.incRef()

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]signalTarget[T], 0, len(s.targets)+1)
	for _, t := range s.targets {
		if !t.weak.IsLive() {
			t.weak.decRef()
			continue
		}
		next = append(next, t)
	}
	next = append(next, signalTarget[T]{delegate: delegate, weak: weak, mode: mode})
	s.targets = next
	s.store(next)
}

// ConnectPipe connects p's current binding as a signal target sharing
// p's delegate and weak data (an additional ref is taken; p's own
// binding is untouched). No-op if p is unbound.
func (s *Signal[T]) ConnectPipe(p *Pipe[T], mode DeliveryMode) {
	if !p.bound() {
		return
	}
	p.weak.incRef()

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]signalTarget[T], 0, len(s.targets)+1)
	for _, t := range s.targets {
		if !t.weak.IsLive() {
			t.weak.decRef()
			continue
		}
		next = append(next, t)
	}
	next = append(next, signalTarget[T]{delegate: p.delegate, weak: p.weak, mode: mode})
	s.targets = next
	s.store(next)
}

// Disconnect removes every target connected against receiver, releasing
// their weak-data refs and pruning any other already-dead entries found
// along the way.
func (s *Signal[T]) Disconnect(receiver *Object) {
	weak := receiver.Weak()

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]signalTarget[T], 0, len(s.targets))
	for _, t := range s.targets {
		switch {
		case t.weak == weak:
			t.weak.decRef()
		case !t.weak.IsLive():
			t.weak.decRef()
		default:
			next = append(next, t)
		}
	}
	s.targets = next
	s.store(next)
}

// Emit dispatches payload to every connected target visible in the
// snapshot taken at call time (spec.md §4.6's emit algorithm). Targets
// connected after this call started are not visited; targets
// disconnected before it started are not visited either.
//
// This implementation allocates at most one shared envelope for the
// whole emit (instead of spec.md's literal per-remaining-entry resizing
// scheme), sized in a single pass: the envelope is created lazily on the
// first target that actually needs proxied (copy + enqueue) delivery,
// holding one extra "in-progress" reference on top of the one it counts
// for that first target. Every later proxied target adds exactly one
// reference immediately before its part is built, so the count in flight
// always matches the number of parts actually created so far — there is
// no separate sizing pass whose result can go stale if a target's object
// is destroyed mid-emit. The in-progress reference is dropped once after
// the loop, mirroring the original's single-pass refcounting
// (`_examples/original_source/mt/message-queue.c`'s `MT_BaseEmit`: one
// increment per ProxiedSend, one baseline decrement at the end) — see
// DESIGN.md.
func (s *Signal[T]) Emit(payload T) {
	entries := s.load()
	if len(entries) == 0 {
		return
	}

	var env *envelope
	var v *T
	for _, t := range entries {
		if !t.weak.IsLive() {
			continue
		}
		if t.mode == DeliveryDirect || (t.mode == DeliveryAuto && IsSynchronous(t.weak)) {
			t.delegate(&payload)
			continue
		}

		if env == nil {
			env, v = newSingleEnvelope(payload, 2) // in-progress ref + this part
		} else {
			env.ref.Add(1)
		}
		mq := t.weak.Queue()
		if mq == nil {
			env.release() // undo the ref just added for this target
			continue
		}
		part := newPart(env, t.weak, v, t.delegate)
		enqueueTo(mq, t.weak, part)
	}
	if env != nil {
		env.release() // drop the in-progress ref
	}
}
