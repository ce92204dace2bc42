//go:build linux

package evrt

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// newWakeup creates a non-blocking, close-on-exec eventfd used as both
// the read and write end, grounded on
// joeycumines-go-utilpkg/eventloop/wakeup_linux.go's createWakeFd.
func newWakeup() (*wakeup, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &wakeup{readFD: fd, writeFD: fd}, nil
}

// trigger adds 1 to the eventfd counter, coalescing with any pending
// trigger the consumer has not yet drained (the kernel counter itself
// performs the coalescing).
func (w *wakeup) trigger() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(w.writeFD, buf[:])
	if err == unix.EAGAIN {
		return nil // counter already saturated/pending; equivalent to coalesced
	}
	return err
}

// drain reads (and discards) the current eventfd counter, resetting it
// to 0 without blocking.
func (w *wakeup) drain() error {
	var buf [8]byte
	_, err := unix.Read(w.readFD, buf[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (w *wakeup) close() error {
	return unix.Close(w.readFD)
}
