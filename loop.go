package evrt

import (
	"container/heap"
	"log/slog"
	"sync/atomic"
	"time"
)

// pollEvent is one fd's readiness report from a poller implementation.
type pollEvent struct {
	fd int
	ev EventFlags
}

// poller is the OS-facing multiplexer a Loop drives. poller_linux.go
// implements it over epoll; poller_poll.go implements it over poll(2) for
// the other unix targets this module builds on.
type poller interface {
	watch(fd int, flags EventFlags) error
	modify(fd int, flags EventFlags) error
	unwatch(fd int) error
	wait(timeoutMs int) ([]pollEvent, error)
	close() error
}

// LoopOption configures a Loop at construction, following the teacher's
// functional-option constructor style (gaio's NewWatcherSize).
type LoopOption func(*Loop)

// WithLoopLogger sets the *slog.Logger a Loop uses for poll-error and
// diagnostic messages. Defaults to slog.Default().
func WithLoopLogger(l *slog.Logger) LoopOption {
	return func(lp *Loop) { lp.logger = l }
}

// Loop is a per-thread event loop: it multiplexes socket readiness,
// timers, idle work and a single embedded wakeup handle into the
// priority-ordered turn spec.md §4.1 describes.
//
// A Loop must only be driven (Run/RunTurn) by the single goroutine that
// owns it; registration methods (NewSocket, NewTick, ...) are likewise
// intended to be called from that goroutine once the loop is running,
// mirroring spec.md §5 "Event loops: owned by one thread; not shared."
type Loop struct {
	poller poller
	logger *slog.Logger

	sockets map[int]*Event
	timers  timerHeap
	timerSeq uint64

	idle       []*Event
	idleCursor int

	cached       []pollEvent
	cachedPos    int
	cachedRemain EventFlags

	wake      *wakeup
	wakeEvent *Event
	onWake    func()

	exited  atomic.Bool
	running atomic.Bool
}

// NewLoop creates a Loop with an open poller and an embedded wakeup
// handle, ready to have sockets/timers/idle tasks registered and Run
// called.
func NewLoop(opts ...LoopOption) (*Loop, error) {
	l := &Loop{
		sockets: make(map[int]*Event),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	p, err := openPoller()
	if err != nil {
		return nil, err
	}
	l.poller = p

	w, err := newWakeup()
	if err != nil {
		_ = p.close()
		return nil, err
	}
	l.wake = w

	we := &Event{k: kindHandle, loop: l, fd: w.fd()}
	we.onRead = func(*Event) {
		l.wake.drain()
		if l.onWake != nil {
			l.onWake()
		}
	}
	l.wakeEvent = we
	l.sockets[we.fd] = we
	we.enabled = FlagRead
	if err := l.poller.watch(we.fd, FlagRead); err != nil {
		_ = w.close()
		_ = p.close()
		return nil, err
	}

	return l, nil
}

// setWakeHandler installs the callback invoked after the embedded wakeup
// handle has been drained. Used by MessageQueue to trigger a drain pass.
func (l *Loop) setWakeHandler(fn func()) { l.onWake = fn }

// WakeUp triggers the loop's embedded wakeup handle directly, for callers
// (e.g. a bare I/O loop with no MessageQueue) that want to interrupt a
// blocking poll from another goroutine without going through a message
// delivery (spec.md's original_source-derived "manual poke", see
// SPEC_FULL.md SUPPLEMENTED FEATURES #1).
func (l *Loop) WakeUp() error {
	return l.wake.trigger()
}

// Exit sets the loop's exit flag and triggers the wakeup primitive; the
// loop finishes its current turn and Run returns. Safe to call from any
// goroutine.
func (l *Loop) Exit() {
	if !l.exited.Swap(true) {
		_ = l.wake.trigger()
	}
}

// Exited reports whether Exit has been called.
func (l *Loop) Exited() bool { return l.exited.Load() }

// Run repeats turns until Exit is called from any goroutine. It must be
// called from the loop's owning goroutine.
func (l *Loop) Run() error {
	if l.running.Swap(true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)
	for !l.exited.Load() {
		if err := l.RunTurn(); err != nil {
			return err
		}
	}
	return nil
}

// RunTurn executes exactly one unit of work chosen by the fixed priority
// order of spec.md §4.1: a cached OS event, an expired timer, an idle
// task, else a blocking poll (followed by servicing the earliest timer if
// the poll returned because its timeout elapsed).
func (l *Loop) RunTurn() error {
	if l.exited.Load() {
		return ErrLoopClosed
	}

	// 1. Cached OS event.
	if l.dispatchCached() {
		return nil
	}

	// 2. Expired timer.
	if l.timers.Len() > 0 && !l.timers[0].nextFire.After(time.Now()) {
		l.fireEarliestTimer()
		return nil
	}

	// 3. Idle task, preceded by a zero-timeout poll so urgent I/O preempts
	// idle work.
	if len(l.idle) > 0 {
		n, err := l.poll(0)
		if err != nil {
			return l.handlePollErr(err)
		}
		if n > 0 {
			l.dispatchCached()
			return nil
		}
		l.dispatchNextIdle()
		return nil
	}

	// 4. Blocking poll.
	timeout := -1
	if l.timers.Len() > 0 {
		timeout = msUntil(l.timers[0].nextFire)
	}
	n, err := l.poll(timeout)
	if err != nil {
		return l.handlePollErr(err)
	}
	if n > 0 {
		l.dispatchCached()
		return nil
	}

	// 5. Post-block timer: the blocking poll's own timeout proves expiry,
	// no need to recheck the clock.
	if l.timers.Len() > 0 {
		l.fireEarliestTimer()
	}
	return nil
}

func msUntil(t time.Time) int {
	d := time.Until(t)
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms <= 0 {
		return 1
	}
	return int(ms)
}

// poll runs one poller.wait call, seeding the cached-event state from its
// result. Poll errors other than interrupt/timeout are treated as a
// spurious wake (spec.md §4.1 "Failure model").
func (l *Loop) poll(timeoutMs int) (int, error) {
	events, err := l.poller.wait(timeoutMs)
	if err != nil {
		return 0, err
	}
	if len(events) > 0 {
		l.cached = events
		l.cachedPos = 0
		l.cachedRemain = l.remainingBits(events[0])
	}
	return len(events), nil
}

func (l *Loop) handlePollErr(err error) error {
	l.logger.Debug("evrt: poll error treated as spurious wake", "error", err)
	return nil
}

// remainingBits computes, for a freshly cached poll event, which bits are
// both reported by the OS and enabled by the registration.
func (l *Loop) remainingBits(pe pollEvent) EventFlags {
	reg, ok := l.sockets[pe.fd]
	if !ok {
		return 0
	}
	if reg.k == kindServerSocket {
		// accept-readiness is signaled by the OS as plain read-readiness;
		// translate it to FlagAccept so dispatch routes to onAccept.
		if pe.ev&FlagRead != 0 && reg.enabled&FlagAccept != 0 {
			return FlagAccept
		}
		return 0
	}
	return pe.ev & reg.enabled
}

func (l *Loop) hasCached() bool {
	for l.cachedPos < len(l.cached) {
		if l.cachedRemain != 0 {
			if _, ok := l.sockets[l.cached[l.cachedPos].fd]; ok {
				return true
			}
		}
		l.cachedPos++
		if l.cachedPos < len(l.cached) {
			l.cachedRemain = l.remainingBits(l.cached[l.cachedPos])
		}
	}
	return false
}

// dispatchCached dispatches the next undispatched bit of the next cached
// OS event, in socket bit order (read, close, write, accept). Each bit is
// cleared only after its callback returns.
func (l *Loop) dispatchCached() bool {
	if !l.hasCached() {
		return false
	}
	pe := l.cached[l.cachedPos]
	reg, ok := l.sockets[pe.fd]
	if !ok {
		l.cachedRemain = 0
		return l.hasCached() && l.dispatchCached()
	}

	for _, bit := range socketBitOrder {
		if l.cachedRemain&bit == 0 {
			continue
		}
		switch {
		case bit == FlagRead && reg.onRead != nil:
			reg.onRead(reg)
		case bit == FlagClose && reg.onClose != nil:
			reg.onClose(reg, reg.LastErr)
		case bit == FlagWrite && reg.onWrite != nil:
			reg.onWrite(reg)
		case bit == FlagAccept && reg.onAccept != nil:
			reg.onAccept(reg)
		}
		l.cachedRemain &^= bit
		return true
	}
	return true
}

// clearCachedFor invalidates any cached reference to fd, e.g. because its
// event was freed mid-dispatch.
func (l *Loop) clearCachedFor(fd int) {
	for i := range l.cached {
		if l.cached[i].fd == fd {
			l.cached[i].ev = 0
		}
	}
	if l.cachedPos < len(l.cached) && l.cached[l.cachedPos].fd == fd {
		l.cachedRemain = 0
	}
}

func (l *Loop) fireEarliestTimer() {
	e := l.timers[0]
	heap.Remove(&l.timers, e.heapIdx)
	// advance next-fire by period, then re-insert with a fresh seq so the
	// timer sorts after every timer already due at the same instant (the
	// upper-bound position).
	e.nextFire = e.nextFire.Add(e.period)
	l.timerSeq++
	e.seq = l.timerSeq
	heap.Push(&l.timers, e)
	if e.onTick != nil {
		e.onTick(e)
	}
}

func (l *Loop) rearmTimer() {
	// No-op for the heap-driven design: RunTurn always recomputes the
	// blocking-poll timeout from timers[0] on its next pass, so there is
	// no separate timer fd to re-arm (unlike an OS timerfd backed design).
}

func (l *Loop) addIdle(e *Event) {
	e.idleIndex = len(l.idle)
	l.idle = append(l.idle, e)
}

func (l *Loop) removeIdle(e *Event) {
	idx := e.idleIndex
	if idx < 0 || idx >= len(l.idle) || l.idle[idx] != e {
		return
	}
	l.idle = append(l.idle[:idx], l.idle[idx+1:]...)
	for i := idx; i < len(l.idle); i++ {
		l.idle[i].idleIndex = i
	}
	if idx < l.idleCursor {
		l.idleCursor--
	}
	if l.idleCursor > len(l.idle) {
		l.idleCursor = 0
	}
}

func (l *Loop) dispatchNextIdle() {
	if len(l.idle) == 0 {
		return
	}
	if l.idleCursor >= len(l.idle) {
		l.idleCursor = 0
	}
	e := l.idle[l.idleCursor]
	l.idleCursor++
	if l.idleCursor >= len(l.idle) {
		l.idleCursor = 0
	}
	if e.onIdle != nil {
		e.onIdle(e)
	}
}

func (l *Loop) syncSocketInterest(e *Event) {
	_ = l.poller.modify(e.fd, e.enabled&(FlagRead|FlagWrite))
}

func (l *Loop) freeSocket(e *Event) {
	delete(l.sockets, e.fd)
	_ = l.poller.unwatch(e.fd)
}

func heapPush(h *timerHeap, e *Event) { heap.Push(h, e) }

func heapRemove(h *timerHeap, e *Event) {
	if e.heapIdx < 0 || e.heapIdx >= h.Len() {
		return
	}
	heap.Remove(h, e.heapIdx)
}

// NewSocket registers fd as a client-stream socket with read/write/close
// callbacks. Socket readiness is reactor-style: the loop invokes the
// appropriate callback and leaves performing the actual read/write
// syscall to the caller (the buffered-I/O layer this runtime's
// Non-goals place out of scope), draining until EAGAIN on
// edge-triggered platforms per spec.md §4.1.
func (l *Loop) NewSocket(fd int, cb SocketCallbacks) (*Event, error) {
	e := &Event{k: kindSocket, loop: l, fd: fd, onRead: cb.OnRead, onWrite: cb.OnWrite, onClose: cb.OnClose}
	if err := l.poller.watch(fd, 0); err != nil {
		return nil, err
	}
	l.sockets[fd] = e
	return e, nil
}

// NewServerSocket registers fd as an accepting socket.
func (l *Loop) NewServerSocket(fd int, onAccept func(e *Event)) (*Event, error) {
	e := &Event{k: kindServerSocket, loop: l, fd: fd, onAccept: onAccept}
	if err := l.poller.watch(fd, 0); err != nil {
		return nil, err
	}
	l.sockets[fd] = e
	if err := e.Enable(FlagAccept | FlagRead); err != nil {
		return nil, err
	}
	return e, nil
}

// NewHandle registers an OS-level waitable handle, dispatched like a
// socket read-ready event.
func (l *Loop) NewHandle(fd int, cb func(e *Event)) (*Event, error) {
	e := &Event{k: kindHandle, loop: l, fd: fd, onRead: cb}
	if err := l.poller.watch(fd, FlagRead); err != nil {
		return nil, err
	}
	e.enabled = FlagRead
	l.sockets[fd] = e
	return e, nil
}

// NewTick registers a periodic timer, initially disabled; call
// Enable(FlagTick) to arm it.
func (l *Loop) NewTick(period time.Duration, cb func(e *Event)) *Event {
	return &Event{k: kindTick, loop: l, period: period, onTick: cb}
}

// NewIdle registers an idle task, initially disabled; call
// Enable(FlagIdle) to add it to the round-robin rotation.
func (l *Loop) NewIdle(cb func(e *Event)) *Event {
	return &Event{k: kindIdle, loop: l, onIdle: cb, idleIndex: -1}
}
