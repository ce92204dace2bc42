package evrt

// wakeup is the cross-thread "poke this loop" handle of spec.md §4.3: it
// becomes readable whenever trigger is called from any goroutine, and
// its read (drain) empties the signal without blocking. Platform files
// provide the concrete fd(s): wakeup_linux.go uses a single eventfd;
// wakeup_poll.go falls back to a pipe(2) pair, per the preference order
// spec.md §4.3 lists (native OS event object, then eventfd-like counter,
// then pipe pair — a native per-platform wait object is unreachable from
// pure Go without cgo, so this implementation stops at the second tier on
// Linux and the third elsewhere).
type wakeup struct {
	readFD  int
	writeFD int
}

// fd returns the descriptor to register for read-readiness with a
// poller.
func (w *wakeup) fd() int { return w.readFD }
