// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

//go:build darwin || dragonfly || freebsd || netbsd || openbsd || solaris
// +build darwin dragonfly freebsd netbsd openbsd solaris

package equeue

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-fiber/api"
)

// newWaker returns the read and write ends of a nonblocking self-pipe.
func newWaker() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, api.Errno("pipe", err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			closeWaker(fds[0], fds[1])
			return -1, -1, api.Errno("set nonblock", err)
		}
	}
	return fds[0], fds[1], nil
}

func signalWaker(w int) error {
	if _, err := unix.Write(w, []byte{1}); err != nil && err != unix.EAGAIN {
		return api.Errno("pipe write", err)
	}
	return nil
}

func drainWaker(r int) {
	var buf [64]byte
	for {
		n, err := unix.Read(r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func closeWaker(r, w int) {
	_ = unix.Close(r)
	_ = unix.Close(w)
}
