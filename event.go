package evrt

import "time"

// EventFlags is a bitset over the event kinds a registration can carry,
// matching spec.md §6's {read, write, close, accept, handle, idle, tick}.
type EventFlags uint32

const (
	FlagRead EventFlags = 1 << iota
	FlagWrite
	FlagClose
	FlagAccept
	FlagHandle
	FlagIdle
	FlagTick
)

// socketBitOrder is the per-socket dispatch order spec.md §4.1 mandates:
// read, close, write, accept.
var socketBitOrder = [...]EventFlags{FlagRead, FlagClose, FlagWrite, FlagAccept}

type eventKind int

const (
	kindSocket eventKind = iota
	kindServerSocket
	kindHandle
	kindTick
	kindIdle
)

// Event is a tagged registration record: exactly one of a client-stream
// socket, an accepting socket, an OS-level waitable handle, a periodic
// timer, or an idle task (spec.md §3 "Event registration").
type Event struct {
	k    eventKind
	loop *Loop
	fd   int // socket/handle fd; unused for timer/idle

	enabled EventFlags
	freed   bool

	onRead   func(*Event)
	onWrite  func(*Event)
	onClose  func(*Event, error)
	onAccept func(*Event)
	LastErr  error

	period   time.Duration
	nextFire time.Time
	onTick   func(*Event)
	heapIdx  int
	seq      uint64

	onIdle    func(*Event)
	idleIndex int
}

// SocketCallbacks groups the callbacks for a client-stream socket
// registration.
type SocketCallbacks struct {
	OnRead  func(e *Event)
	OnWrite func(e *Event)
	OnClose func(e *Event, err error)
}

// FD returns the registered file descriptor for socket/handle events.
func (e *Event) FD() int { return e.fd }

// Enable turns on dispatch for the given bits. Enabling an
// already-enabled bit is idempotent. Enabling FlagTick records the
// timer's first firing at now+period.
func (e *Event) Enable(flags EventFlags) error {
	if e.freed {
		return ErrEventFreed
	}
	already := e.enabled & flags
	e.enabled |= flags
	if flags&FlagTick != 0 && already&FlagTick == 0 {
		e.nextFire = time.Now().Add(e.period)
		e.loop.timerSeq++
		e.seq = e.loop.timerSeq
		heapPush(&e.loop.timers, e)
		e.loop.rearmTimer()
	}
	if flags&(FlagRead|FlagWrite) != 0 {
		e.loop.syncSocketInterest(e)
	}
	if flags&FlagIdle != 0 && already&FlagIdle == 0 {
		e.loop.addIdle(e)
	}
	return nil
}

// Disable turns off dispatch for the given bits. Disabling an idle task
// adjusts the loop's round-robin cursor so no other idle task is skipped
// (spec.md §4.1).
func (e *Event) Disable(flags EventFlags) error {
	if e.freed {
		return ErrEventFreed
	}
	had := e.enabled & flags
	e.enabled &^= flags
	if flags&FlagTick != 0 && had&FlagTick != 0 {
		heapRemove(&e.loop.timers, e)
	}
	if flags&(FlagRead|FlagWrite) != 0 {
		e.loop.syncSocketInterest(e)
	}
	if flags&FlagIdle != 0 && had&FlagIdle != 0 {
		e.loop.removeIdle(e)
	}
	return nil
}

// Reset re-arms a timer (equivalent to Disable+Enable of FlagTick) or
// clears cached revents on a socket event, used by keepalive code to
// avoid spurious wakes after activity.
func (e *Event) Reset() error {
	if e.freed {
		return ErrEventFreed
	}
	switch e.k {
	case kindTick:
		if err := e.Disable(FlagTick); err != nil {
			return err
		}
		return e.Enable(FlagTick)
	default:
		e.loop.clearCachedFor(e.fd)
	}
	return nil
}

// Free removes the event from all loop-owned lists. Freeing a socket
// event during dispatch of that socket is legal; freeing other events
// during a callback is legal and observed on subsequent turns.
func (e *Event) Free() error {
	if e.freed {
		return nil
	}
	e.freed = true
	switch e.k {
	case kindSocket, kindServerSocket, kindHandle:
		e.loop.freeSocket(e)
	case kindTick:
		if e.enabled&FlagTick != 0 {
			heapRemove(&e.loop.timers, e)
		}
	case kindIdle:
		e.loop.removeIdle(e)
	}
	e.loop.clearCachedFor(e.fd)
	return nil
}
