//go:build linux

package evrt

import (
	"golang.org/x/sys/unix"
)

// epollPoller implements poller over epoll(7), grounded on
// joeycumines-go-utilpkg/eventloop/poller_linux.go's flag-translation
// idiom (eventsToEpoll/epollToEvents) adapted to this runtime's
// EventFlags bitset and per-fd readiness reporting shape.
type epollPoller struct {
	epfd int
	buf  [256]unix.EpollEvent
	out  []pollEvent
}

func openPoller() (poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: fd}, nil
}

func flagsToEpoll(flags EventFlags) uint32 {
	var ev uint32
	if flags&FlagRead != 0 {
		ev |= unix.EPOLLIN
	}
	if flags&FlagWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func epollToFlags(ev uint32) EventFlags {
	var flags EventFlags
	if ev&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		flags |= FlagRead
	}
	if ev&unix.EPOLLOUT != 0 {
		flags |= FlagWrite
	}
	if ev&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0 {
		flags |= FlagClose
	}
	return flags
}

func (p *epollPoller) watch(fd int, flags EventFlags) error {
	ev := &unix.EpollEvent{Events: flagsToEpoll(flags), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (p *epollPoller) modify(fd int, flags EventFlags) error {
	ev := &unix.EpollEvent{Events: flagsToEpoll(flags), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (p *epollPoller) unwatch(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) wait(timeoutMs int) ([]pollEvent, error) {
	n, err := unix.EpollWait(p.epfd, p.buf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	p.out = p.out[:0]
	for i := 0; i < n; i++ {
		p.out = append(p.out, pollEvent{fd: int(p.buf[i].Fd), ev: epollToFlags(p.buf[i].Events)})
	}
	return p.out, nil
}

func (p *epollPoller) close() error {
	return unix.Close(p.epfd)
}
