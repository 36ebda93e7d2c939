//go:build linux || darwin

package engine

import (
	"errors"
	"net"

	"golang.org/x/sys/unix"
)

// listenerFd and connFd pull the raw file descriptor out of the
// standard library's net.TCPListener/net.TCPConn via SyscallConn, then
// put the fd into non-blocking mode so the reactor can drive it
// directly through the poller instead of through goroutine-per-
// connection blocking I/O.
func listenerFd(ln *net.TCPListener) (int, error) {
	raw, err := ln.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	var ctrlErr error
	err = raw.Control(func(s uintptr) {
		fd = int(s)
		ctrlErr = unix.SetNonblock(fd, true)
	})
	if err != nil {
		return 0, err
	}
	return fd, ctrlErr
}

func connFd(c *net.TCPConn) (int, error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	var ctrlErr error
	err = raw.Control(func(s uintptr) {
		fd = int(s)
		ctrlErr = unix.SetNonblock(fd, true)
	})
	if err != nil {
		return 0, err
	}
	return fd, ctrlErr
}

// readInto appends up to the caller-chosen chunk size into *buf
// directly via a raw read syscall, growing buf's length in place.
func readInto(fd int, buf *[]byte) (int, error) {
	b := *buf
	start := len(b)
	if cap(b)-start < 4096 {
		grown := make([]byte, start, cap(b)+16*1024)
		copy(grown, b)
		b = grown
	}
	b = b[:cap(b)]
	n, err := unix.Read(fd, b[start:])
	if n < 0 {
		n = 0
	}
	*buf = b[:start+n]
	if err != nil {
		return n, err
	}
	return n, nil
}

func writeFrom(fd int, data []byte) (int, error) {
	n, err := unix.Write(fd, data)
	if n < 0 {
		n = 0
	}
	return n, err
}

func closeFd(fd int) error {
	return unix.Close(fd)
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

func isTemporary(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
