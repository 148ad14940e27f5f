// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package equeue

import (
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/assert"
	"github.com/momentics/hioload-fiber/internal/logging"
	"github.com/momentics/hioload-fiber/internal/transport"
	"github.com/momentics/hioload-fiber/sched"
)

// ErrRegistration marks a failure to sync a handle's interest with the
// kernel. The failure is also delivered to the tasks parked on the
// handle.
var ErrRegistration = errors.New("equeue: interest registration failed")

// Event is one entry of a Dequeue batch.
type Event struct {
	key      Key
	readable bool
	writable bool
}

// Key returns the key of the handle the event belongs to.
func (ev Event) Key() Key { return ev.key }

// Readable reports read readiness, or completion of an accept or receive.
func (ev Event) Readable() bool { return ev.readable }

// Writable reports write readiness, or completion of a send.
func (ev Event) Writable() bool { return ev.writable }

// handle is a socket registered with the queue.
type handle struct {
	key    Key
	sock   transport.Socket
	events api.Interest // desired
	actual api.Interest // last synced to the kernel
	queued bool         // on the changed list
	closed bool
	// internal handles belong to the queue itself and never count as
	// pending work.
	internal bool

	reader sched.TaskID
	writer sched.TaskID
	err    error

	platformHandle
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Handles       int
	Interested    int
	Registrations uint64
	Waits         uint64
	Events        uint64
	Wakeups       uint64
}

// Map renders the counters for debug probes.
func (st Stats) Map() map[string]any {
	return map[string]any{
		"handles":       st.Handles,
		"interested":    st.Interested,
		"registrations": st.Registrations,
		"waits":         st.Waits,
		"events":        st.Events,
		"wakeups":       st.Wakeups,
	}
}

// Equeue owns one kernel notification object and the handles registered
// with it. Apart from Wake it must only be used by tasks of its scheduler.
type Equeue struct {
	s      *sched.Scheduler
	table  table
	log    zerolog.Logger
	closed bool

	// interested counts non-internal handles with a pending interest or
	// operation.
	interested int
	stats      Stats
	wakeArmed  atomic.Bool
	wakeups    atomic.Uint64

	platformQueue
}

// Option customizes an Equeue.
type Option func(*Equeue)

// WithLogger overrides the process logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Equeue) { e.log = l }
}

// New opens the platform notification object for tasks of s.
func New(s *sched.Scheduler, opts ...Option) (*Equeue, error) {
	e := &Equeue{s: s, log: logging.Component("equeue")}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.open(); err != nil {
		return nil, err
	}
	e.log.Debug().Str("backend", backendName).Msg("event queue opened")
	return e, nil
}

// Close releases the kernel object. Sockets registered through clients
// and servers stay open and belong to their owners.
func (e *Equeue) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.shutdown()
}

// Backend names the notification mechanism in use.
func (e *Equeue) Backend() string { return backendName }

// Wake interrupts a blocked Dequeue. It is safe to call from any
// goroutine; calls made while a wake-up is already pending coalesce.
func (e *Equeue) Wake() error {
	if !e.wakeArmed.CompareAndSwap(false, true) {
		return nil
	}
	e.wakeups.Add(1)
	return e.signal()
}

// Stats returns the current counters.
func (e *Equeue) Stats() Stats {
	st := e.stats
	st.Handles = e.table.live
	st.Interested = e.interested
	st.Wakeups = e.wakeups.Load()
	return st
}

func (e *Equeue) register(sock transport.Socket) (*handle, error) {
	if e.closed {
		return nil, api.Wrap("equeue register", api.ErrClosed)
	}
	h := &handle{sock: sock}
	if err := e.table.insert(h); err != nil {
		return nil, err
	}
	return h, nil
}

func (e *Equeue) unregister(h *handle) {
	if h.closed {
		return
	}
	if h.events != 0 && !h.internal {
		e.interested--
	}
	e.forget(h)
	h.closed = true
	e.table.remove(h)
}

// wakeOwners resumes the tasks parked on h for the given readiness.
func (e *Equeue) wakeOwners(h *handle, readable, writable bool) {
	if readable && h.reader != sched.NoTask {
		e.s.Runnable(h.reader)
	}
	if writable && h.writer != sched.NoTask {
		e.s.Runnable(h.writer)
	}
}

// pending reports whether any task waits on the kernel.
func (e *Equeue) pending() bool { return e.interested > 0 }

// claim records the calling task as the owner of one direction of h.
func (e *Equeue) claim(h *handle, in api.Interest) {
	self := e.s.Self()
	if in == api.EventIn {
		assert.That(h.reader == sched.NoTask, "equeue: handle already has a parked reader")
		h.reader = self
		return
	}
	assert.That(h.writer == sched.NoTask, "equeue: handle already has a parked writer")
	h.writer = self
}

func (e *Equeue) release(h *handle, in api.Interest) {
	if in == api.EventIn {
		h.reader = sched.NoTask
	} else {
		h.writer = sched.NoTask
	}
}

// resumeErr reports why a parked operation cannot retry.
func (e *Equeue) resumeErr(h *handle, op string) error {
	if h.err != nil {
		err := h.err
		h.err = nil
		return err
	}
	if h.closed || e.closed {
		return api.Wrap(op, api.ErrClosed)
	}
	if e.s.Canceled() {
		return api.Wrap(op, api.ErrCanceled)
	}
	return nil
}
