//go:build !linux && (darwin || netbsd || freebsd || openbsd || dragonfly)

package evrt

import (
	"sync"

	"golang.org/x/sys/unix"
)

// pollPoller implements poller over poll(2) (golang.org/x/sys/unix.Poll),
// a portable fallback for the BSD/Darwin family this module also builds
// on. A production deployment on these platforms should prefer a
// kqueue-backed poller; poll(2) rebuilds its pollfd slice from the
// registered set on every wait call, which is O(n) in the number of
// watched descriptors rather than kqueue's O(ready).
type pollPoller struct {
	mu      sync.Mutex
	watched map[int]EventFlags
	out     []pollEvent
}

func openPoller() (poller, error) {
	return &pollPoller{watched: make(map[int]EventFlags)}, nil
}

func (p *pollPoller) watch(fd int, flags EventFlags) error {
	p.mu.Lock()
	p.watched[fd] = flags
	p.mu.Unlock()
	return nil
}

func (p *pollPoller) modify(fd int, flags EventFlags) error {
	p.mu.Lock()
	p.watched[fd] = flags
	p.mu.Unlock()
	return nil
}

func (p *pollPoller) unwatch(fd int) error {
	p.mu.Lock()
	delete(p.watched, fd)
	p.mu.Unlock()
	return nil
}

func (p *pollPoller) wait(timeoutMs int) ([]pollEvent, error) {
	p.mu.Lock()
	fds := make([]unix.PollFd, 0, len(p.watched))
	for fd, flags := range p.watched {
		var events int16
		if flags&FlagRead != 0 {
			events |= unix.POLLIN
		}
		if flags&FlagWrite != 0 {
			events |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: events})
	}
	p.mu.Unlock()

	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	p.out = p.out[:0]
	if n == 0 {
		return p.out, nil
	}
	for _, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		var flags EventFlags
		if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			flags |= FlagRead
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			flags |= FlagWrite
		}
		if pfd.Revents&(unix.POLLHUP|unix.POLLERR) != 0 {
			flags |= FlagClose
		}
		p.out = append(p.out, pollEvent{fd: int(pfd.Fd), ev: flags})
	}
	return p.out, nil
}

func (p *pollPoller) close() error {
	return nil
}
