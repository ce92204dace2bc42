package evrt

import "errors"

// Standard errors surfaced across the runtime, matching the taxonomy in
// spec.md §7.
var (
	// ErrLoopClosed is returned by operations attempted on a Loop after
	// Exit has been observed and Run has returned.
	ErrLoopClosed = errors.New("evrt: loop is closed")

	// ErrLoopRunning is returned when Run is called on a loop that is
	// already inside Run (reentrant Run is not supported; use RunTurn
	// from within a callback if a single extra turn is needed).
	ErrLoopRunning = errors.New("evrt: loop is already running")

	// ErrEventFreed is returned by operations on an Event after Free.
	ErrEventFreed = errors.New("evrt: event has been freed")

	// ErrQueueClosed is returned by a MessageQueue's produce path after
	// MessageQueue.Close (which Thread.Free calls).
	ErrQueueClosed = errors.New("evrt: message queue is closed")

	// ErrWrongThread is returned by Object.Destroy when called from a
	// goroutine other than the object's affiliated queue's goroutine.
	ErrWrongThread = errors.New("evrt: operation must run on the object's affiliated queue")

	// ErrParseAbort names the condition of a parser callback returning
	// false (an application-requested abort). parser/json and parser/xml
	// do not return it; each reports an abort with its own error whose
	// text ends in "callback abort".
	ErrParseAbort = errors.New("evrt: parser callback aborted")

	// ErrUnsupportedConn names a connection value that does not expose a
	// usable file descriptor. No function in this package returns it:
	// NewSocket takes a raw descriptor.
	ErrUnsupportedConn = errors.New("evrt: connection type not supported")

	// ErrEmptyBuffer names a write given a zero-length buffer, matching
	// gaio's ErrEmptyBuffer. No function in this package returns it: the
	// loop performs no reads or writes itself.
	ErrEmptyBuffer = errors.New("evrt: empty buffer")

	// ErrDeadline names a timed-out socket operation. No function in this
	// package returns it: socket events carry no deadlines.
	ErrDeadline = errors.New("evrt: i/o deadline exceeded")
)
