// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package equeue

import (
	"errors"
	"sync/atomic"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/assert"
)

// ErrStalled is returned by Loop.Run when tasks remain but none can ever
// run again: nothing is runnable and no task waits on the kernel.
var ErrStalled = errors.New("equeue: tasks remain but none can make progress")

// DefaultBatch is the number of events a Loop dequeues at once.
const DefaultBatch = 64

// Loop drives a scheduler and its event queue from the root task.
type Loop struct {
	e       *Equeue
	events  []Event
	stopped atomic.Bool
	rounds  uint64
}

// NewLoop creates a driver dequeuing up to batch events per round.
func NewLoop(e *Equeue, batch int) *Loop {
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &Loop{e: e, events: make([]Event, batch)}
}

// Run alternates between running every runnable task and waiting for
// kernel events until all tasks have exited or Stop is called. It must be
// called from the root task.
func (l *Loop) Run() error {
	s := l.e.s
	assert.That(s.Self() == s.Root(), "equeue: loop must run on the root task")
	log := l.e.log
	s.Schedule(true)
	for !l.stopped.Load() {
		if s.Tasks() == 0 {
			return nil
		}
		if s.RunnableCount() > 1 {
			s.Schedule(true)
			continue
		}
		if !l.e.pending() {
			log.Warn().Int("tasks", s.Tasks()).Msg("no runnable task and no pending I/O")
			return ErrStalled
		}
		n, err := l.e.Dequeue(l.events)
		if err != nil {
			if !errors.Is(err, ErrRegistration) {
				return err
			}
			log.Error().Err(err).Msg("interest registration failed")
		}
		l.Dispatch(l.events[:n])
		l.rounds++
		s.Schedule(true)
	}
	log.Debug().Uint64("rounds", l.rounds).Msg("loop stopped")
	return nil
}

// Dispatch makes the owners of each event's handle runnable. Events for
// handles closed since the wait are dropped.
func (l *Loop) Dispatch(events []Event) {
	for _, ev := range events {
		h := l.e.table.lookup(ev.key)
		if h == nil {
			continue
		}
		l.e.wakeOwners(h, ev.readable, ev.writable)
	}
}

// Stop makes Run return after its current round. It is safe to call from
// any goroutine.
func (l *Loop) Stop() error {
	if l.stopped.Swap(true) {
		return nil
	}
	if err := l.e.Wake(); err != nil {
		return api.Wrap("loop stop", err)
	}
	return nil
}

// Rounds reports how many wait rounds Run completed.
func (l *Loop) Rounds() uint64 { return l.rounds }
