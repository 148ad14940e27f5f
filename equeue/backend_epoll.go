// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

//go:build linux
// +build linux

package equeue

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-fiber/api"
)

const backendName = "epoll"

type platformQueue struct {
	readiness
	epfd int
	raw  []unix.EpollEvent
}

type platformHandle struct{}

func (e *Equeue) open() error {
	e.init()
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return api.Errno("epoll_create1", err)
	}
	e.epfd = fd
	if err := e.openWake(); err != nil {
		_ = unix.Close(fd)
		return err
	}
	return nil
}

func (e *Equeue) shutdown() error {
	e.closeWake()
	return api.Errno("close", unix.Close(e.epfd))
}

func epollBits(in api.Interest) uint32 {
	var bits uint32
	if in&api.EventIn != 0 {
		bits |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if in&api.EventOut != 0 {
		bits |= unix.EPOLLOUT
	}
	return bits
}

// sync issues the epoll_ctl call that moves the kernel from h.actual to
// h.events.
func (e *Equeue) sync(h *handle) error {
	op := unix.EPOLL_CTL_DEL
	switch {
	case h.actual == 0:
		op = unix.EPOLL_CTL_ADD
	case h.events != 0:
		op = unix.EPOLL_CTL_MOD
	}
	ev := unix.EpollEvent{
		Events: epollBits(h.events),
		Fd:     int32(uint32(h.key)),
		Pad:    int32(uint32(h.key >> 32)),
	}
	e.stats.Registrations++
	return api.Errno("epoll_ctl", unix.EpollCtl(e.epfd, op, int(h.sock), &ev))
}

// forget needs no kernel call: closing the descriptor drops it from the
// epoll set.
func (e *Equeue) forget(*handle) {}

func (e *Equeue) poll(events []Event) (int, error) {
	if cap(e.raw) < len(events) {
		e.raw = make([]unix.EpollEvent, len(events))
	}
	raw := e.raw[:len(events)]
	n, err := unix.EpollWait(e.epfd, raw, -1)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, api.Errno("epoll_wait", err)
	}
	out := 0
	for _, ev := range raw[:n] {
		key := Key(uint32(ev.Fd)) | Key(uint32(ev.Pad))<<32
		if e.consumeWake(key) {
			continue
		}
		broken := ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0
		events[out] = Event{
			key:      key,
			readable: broken || ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0,
			writable: broken || ev.Events&unix.EPOLLOUT != 0,
		}
		out++
	}
	return out, nil
}
