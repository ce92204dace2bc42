//go:build !linux && (darwin || netbsd || freebsd || openbsd || dragonfly)

package evrt

import "golang.org/x/sys/unix"

// newWakeup creates a non-blocking, close-on-exec pipe(2) pair: the read
// end is polled, the write end is used by trigger, per spec.md §4.3's
// third-preference implementation choice.
func newWakeup() (*wakeup, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return nil, err
	}
	return &wakeup{readFD: fds[0], writeFD: fds[1]}, nil
}

// trigger writes one byte to the pipe's write end on every call; drain
// empties however many bytes have accumulated.
func (w *wakeup) trigger() error {
	_, err := unix.Write(w.writeFD, []byte{1})
	if err == unix.EAGAIN {
		return nil // pipe buffer full: wake bytes are already pending
	}
	return err
}

// drain reads every pending byte out of the pipe without blocking.
func (w *wakeup) drain() error {
	var buf [64]byte
	for {
		_, err := unix.Read(w.readFD, buf[:])
		if err != nil {
			if err == unix.EAGAIN {
				return nil
			}
			return err
		}
	}
}

func (w *wakeup) close() error {
	_ = unix.Close(w.writeFD)
	return unix.Close(w.readFD)
}
