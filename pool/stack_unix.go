//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris
// +build darwin dragonfly freebsd linux netbsd openbsd solaris

// Package pool
// Author: momentics <momentics@gmail.com>
//
// mmap backed stack regions with an mprotect'ed guard.

package pool

import (
	"github.com/momentics/hioload-fiber/api"
	"golang.org/x/sys/unix"
)

func mapRegion(total, guard int) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, api.Errno("mmap", err)
	}
	if err := unix.Mprotect(mem[:guard], unix.PROT_NONE); err != nil {
		_ = unix.Munmap(mem)
		return nil, api.Errno("mprotect", err)
	}
	return mem, nil
}

func unmapRegion(mem []byte) error {
	return api.Errno("munmap", unix.Munmap(mem))
}
