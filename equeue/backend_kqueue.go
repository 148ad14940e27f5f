// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

//go:build darwin || dragonfly || freebsd || netbsd || openbsd
// +build darwin dragonfly freebsd netbsd openbsd

package equeue

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-fiber/api"
)

const backendName = "kqueue"

type platformQueue struct {
	readiness
	kq      int
	byIdent map[int]Key
	changes []unix.Kevent_t
	raw     []unix.Kevent_t
}

type platformHandle struct{}

func (e *Equeue) open() error {
	e.init()
	e.byIdent = make(map[int]Key)
	fd, err := unix.Kqueue()
	if err != nil {
		return api.Errno("kqueue", err)
	}
	unix.CloseOnExec(fd)
	e.kq = fd
	if err := e.openWake(); err != nil {
		_ = unix.Close(fd)
		return err
	}
	// The wake registration only sits in the change list so far.
	if _, err := unix.Kevent(e.kq, e.changes, nil, nil); err != nil {
		_ = unix.Close(fd)
		return api.Errno("kevent", err)
	}
	e.changes = e.changes[:0]
	return nil
}

func (e *Equeue) shutdown() error {
	e.closeWake()
	return api.Errno("close", unix.Close(e.kq))
}

// sync appends one change per filter whose bit flipped. The changes reach
// the kernel together with the next wait.
func (e *Equeue) sync(h *handle) error {
	fd := int(h.sock)
	e.byIdent[fd] = h.key
	for _, f := range [...]struct {
		bit    api.Interest
		filter int
	}{{api.EventIn, unix.EVFILT_READ}, {api.EventOut, unix.EVFILT_WRITE}} {
		want, had := h.events&f.bit != 0, h.actual&f.bit != 0
		if want == had {
			continue
		}
		var ev unix.Kevent_t
		flags := unix.EV_ADD | unix.EV_ENABLE
		if !want {
			flags = unix.EV_DELETE
		}
		unix.SetKevent(&ev, fd, f.filter, flags)
		e.changes = append(e.changes, ev)
		e.stats.Registrations++
	}
	return nil
}

func (e *Equeue) forget(h *handle) {
	fd := int(h.sock)
	if k, ok := e.byIdent[fd]; ok && k == h.key {
		delete(e.byIdent, fd)
	}
}

// poll submits the batched changes and waits in one kevent call. Changes
// the kernel rejects come back as EV_ERROR entries and are charged to
// their handles.
func (e *Equeue) poll(events []Event) (int, error) {
	size := len(events) + len(e.changes)
	if cap(e.raw) < size {
		e.raw = make([]unix.Kevent_t, size)
	}
	raw := e.raw[:size]
	changes := e.changes
	e.changes = e.changes[:0]

	n, err := unix.Kevent(e.kq, changes, raw, nil)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, api.Errno("kevent", err)
	}
	out := 0
	var regErr error
	for _, ev := range raw[:n] {
		key, ok := e.byIdent[int(ev.Ident)]
		if !ok {
			continue
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			if h := e.table.lookup(key); h != nil && ev.Data != 0 {
				h.err = api.Wrap("register", errors.Join(ErrRegistration, api.Errno("kevent", unix.Errno(ev.Data))))
				h.actual &^= filterInterest(int(ev.Filter))
				e.wakeOwners(h, true, true)
				if regErr == nil {
					regErr = h.err
				}
			}
			continue
		}
		if e.consumeWake(key) {
			continue
		}
		// Filters are level-triggered: an event past the caller's buffer is
		// reported again by the next wait while the condition holds.
		if out == len(events) {
			continue
		}
		in := filterInterest(int(ev.Filter))
		events[out] = Event{key: key, readable: in == api.EventIn, writable: in == api.EventOut}
		out++
	}
	if regErr != nil && out == 0 {
		return 0, regErr
	}
	return out, nil
}

func filterInterest(filter int) api.Interest {
	switch filter {
	case unix.EVFILT_READ:
		return api.EventIn
	case unix.EVFILT_WRITE:
		return api.EventOut
	}
	return 0
}
