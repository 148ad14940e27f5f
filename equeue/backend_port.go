// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

//go:build solaris
// +build solaris

package equeue

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-fiber/api"
)

const backendName = "eventport"

type platformQueue struct {
	readiness
	port *unix.EventPort
	raw  []unix.PortEvent
}

type platformHandle struct{}

func (e *Equeue) open() error {
	e.init()
	p, err := unix.NewEventPort()
	if err != nil {
		return api.Errno("port_create", err)
	}
	e.port = p
	if err := e.openWake(); err != nil {
		_ = p.Close()
		return err
	}
	return nil
}

func (e *Equeue) shutdown() error {
	e.closeWake()
	return api.Errno("close", e.port.Close())
}

func portBits(in api.Interest) int {
	var bits int
	if in&api.EventIn != 0 {
		bits |= unix.POLLIN
	}
	if in&api.EventOut != 0 {
		bits |= unix.POLLOUT
	}
	return bits
}

// sync re-arms the association. Associations are one-shot: a delivered
// event drops it, which poll mirrors by clearing h.actual.
func (e *Equeue) sync(h *handle) error {
	fd := uintptr(h.sock)
	if h.actual != 0 {
		e.stats.Registrations++
		if err := e.port.DissociateFd(fd); err != nil {
			return api.Errno("port_dissociate", err)
		}
		h.actual = 0
	}
	if h.events == 0 {
		return nil
	}
	e.stats.Registrations++
	return api.Errno("port_associate", e.port.AssociateFd(fd, portBits(h.events), h.key))
}

func (e *Equeue) forget(h *handle) {
	if h.actual != 0 {
		_ = e.port.DissociateFd(uintptr(h.sock))
		h.actual = 0
	}
}

func (e *Equeue) poll(events []Event) (int, error) {
	if cap(e.raw) < len(events) {
		e.raw = make([]unix.PortEvent, len(events))
	}
	raw := e.raw[:len(events)]
	n, err := e.port.Get(raw, 1, nil)
	if err != nil && n == 0 {
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.ETIME) {
			return 0, nil
		}
		return 0, api.Errno("port_getn", err)
	}
	out := 0
	for _, ev := range raw[:n] {
		key, ok := ev.Cookie.(Key)
		if !ok {
			continue
		}
		if h := e.table.lookup(key); h != nil {
			h.actual = 0
			e.markChanged(h)
		}
		if e.consumeWake(key) {
			continue
		}
		broken := ev.Events&(unix.POLLERR|unix.POLLHUP) != 0
		events[out] = Event{
			key:      key,
			readable: broken || ev.Events&unix.POLLIN != 0,
			writable: broken || ev.Events&unix.POLLOUT != 0,
		}
		out++
	}
	return out, nil
}
