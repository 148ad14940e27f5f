// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris
// +build darwin dragonfly freebsd linux netbsd openbsd solaris

package equeue

import (
	"fmt"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/assert"
	"github.com/momentics/hioload-fiber/internal/transport"
)

// readiness carries the state shared by the epoll, kqueue and event port
// backends.
type readiness struct {
	changed *queue.Queue
	wake    *handle
	wakeW   int
}

func (r *readiness) init() { r.changed = queue.New() }

// markChanged queues h for the next commit when its desired and synced
// interest differ.
func (e *Equeue) markChanged(h *handle) {
	if h.queued || h.events == h.actual {
		return
	}
	h.queued = true
	e.changed.Add(h)
}

func (e *Equeue) subscribe(h *handle, in api.Interest) {
	if h.events == 0 && !h.internal {
		e.interested++
	}
	h.events |= in
	e.markChanged(h)
}

func (e *Equeue) unsubscribe(h *handle, in api.Interest) {
	if h.closed || h.events&in == 0 {
		return
	}
	h.events &^= in
	if h.events == 0 && !h.internal {
		e.interested--
	}
	e.markChanged(h)
}

// commit syncs every queued handle whose interest still differs from the
// kernel's view. A handle that failed keeps its old synced mask; the error
// is parked on it and its tasks are woken to report it.
func (e *Equeue) commit() error {
	var first error
	for e.changed.Length() > 0 {
		h := e.changed.Remove().(*handle)
		h.queued = false
		if h.closed || h.events == h.actual {
			continue
		}
		var err error
		if h.events&^api.EventMask != 0 {
			err = fmt.Errorf("interest %#x: %w", uint8(h.events), api.ErrInvalidArgument)
		} else {
			err = e.sync(h)
		}
		if err != nil {
			h.err = api.Wrap("register", fmt.Errorf("%w: %w", ErrRegistration, err))
			e.wakeOwners(h, true, true)
			if first == nil {
				first = h.err
			}
			continue
		}
		h.actual = h.events
	}
	return first
}

// Dequeue commits pending interest changes, then blocks until at least one
// event is available and fills events with them. An interrupted wait
// returns zero events.
func (e *Equeue) Dequeue(events []Event) (int, error) {
	assert.That(len(events) > 0, "equeue: empty event buffer")
	if e.closed {
		return 0, api.Wrap("dequeue", api.ErrClosed)
	}
	if err := e.commit(); err != nil {
		return 0, err
	}
	n, err := e.poll(events)
	e.stats.Waits++
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		checkKey(events[i].key)
	}
	e.stats.Events += uint64(n)
	return n, nil
}

// park subscribes h for in, yields until a driver wakes the task, then
// drops the subscription. The subscription is also dropped when the task
// is destroyed while parked.
func (e *Equeue) park(h *handle, in api.Interest, op string) error {
	if err := e.resumeErr(h, op); err != nil {
		return err
	}
	e.claim(h, in)
	e.subscribe(h, in)
	defer func() {
		e.unsubscribe(h, in)
		e.release(h, in)
	}()
	e.s.Schedule(true)
	return e.resumeErr(h, op)
}

func (e *Equeue) accept(h *handle) (transport.Socket, error) {
	s, err := transport.Accept(h.sock)
	if err == nil || !transport.IsWouldBlock(err) {
		return s, err
	}
	if err := e.park(h, api.EventIn, "accept"); err != nil {
		return transport.InvalidSocket, err
	}
	return transport.Accept(h.sock)
}

func (e *Equeue) recv(h *handle, p []byte) (int, error) {
	n, err := transport.Read(h.sock, p)
	if err == nil || !transport.IsWouldBlock(err) {
		return n, err
	}
	if err := e.park(h, api.EventIn, "recv"); err != nil {
		return 0, err
	}
	return transport.Read(h.sock, p)
}

func (e *Equeue) send(h *handle, p []byte) (int, error) {
	n, err := transport.Write(h.sock, p)
	if err == nil || !transport.IsWouldBlock(err) {
		return n, err
	}
	if err := e.park(h, api.EventOut, "send"); err != nil {
		return 0, err
	}
	return transport.Write(h.sock, p)
}

// finishConnect waits for an in-progress connect to resolve.
func (e *Equeue) finishConnect(h *handle) error {
	if err := e.park(h, api.EventOut, "connect"); err != nil {
		return err
	}
	return transport.ConnectResult(h.sock)
}

// openWake registers the internal wake-up descriptor for reading.
func (e *Equeue) openWake() error {
	r, w, err := newWaker()
	if err != nil {
		return err
	}
	h, err := e.register(transport.Socket(r))
	if err != nil {
		closeWaker(r, w)
		return err
	}
	h.internal = true
	e.wake, e.wakeW = h, w
	e.subscribe(h, api.EventIn)
	return e.commit()
}

// consumeWake drains the wake-up descriptor when ev belongs to it.
func (e *Equeue) consumeWake(k Key) bool {
	if e.wake == nil || k != e.wake.key {
		return false
	}
	drainWaker(int(e.wake.sock))
	e.wakeArmed.Store(false)
	return true
}

func (e *Equeue) signal() error {
	return signalWaker(e.wakeW)
}

func (e *Equeue) closeWake() {
	if e.wake == nil {
		return
	}
	r := int(e.wake.sock)
	e.unregister(e.wake)
	closeWaker(r, e.wakeW)
	e.wake = nil
}
