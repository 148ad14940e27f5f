// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

//go:build linux
// +build linux

package equeue

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-fiber/api"
)

// newWaker returns one eventfd serving as both ends.
func newWaker() (int, int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, api.Errno("eventfd", err)
	}
	return fd, fd, nil
}

func signalWaker(w int) error {
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	if _, err := unix.Write(w, one[:]); err != nil && err != unix.EAGAIN {
		return api.Errno("eventfd write", err)
	}
	return nil
}

func drainWaker(r int) {
	var buf [8]byte
	_, _ = unix.Read(r, buf[:])
}

func closeWaker(r, _ int) { _ = unix.Close(r) }
