//go:build linux

package sys

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// NewEventFD creates a non-blocking eventfd, used as a close/flush signal a
// Multiplexer can fold into the same epoll set as its per-CPU ring fds.
func NewEventFD() (int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, errors.Wrap(err, "eventfd")
	}
	return fd, nil
}

// SignalEventFD writes a single value to an eventfd created by NewEventFD.
func SignalEventFD(fd int) error {
	var value [8]byte
	nativeEndian.PutUint64(value[:], 1)
	_, err := unix.Write(fd, value[:])
	return err
}

// NewEpollFD creates an epoll instance and registers fds for level-triggered
// readability.
func NewEpollFD(fds ...int) (int, error) {
	epollFD, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return -1, errors.Wrap(err, "epoll_create1")
	}

	for _, fd := range fds {
		event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(epollFD, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			unix.Close(epollFD)
			return -1, errors.Wrap(err, "epoll_ctl")
		}
	}

	return epollFD, nil
}

// EpollWait blocks until one of the registered fds is ready, filling events
// and returning how many are ready.
func EpollWait(epollFD int, events []unix.EpollEvent) (int, error) {
	n, err := unix.EpollWait(epollFD, events, -1)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}
