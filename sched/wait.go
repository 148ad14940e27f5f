// File: sched/wait.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

import (
	"github.com/eapache/queue"

	"github.com/momentics/hioload-fiber/internal/assert"
)

// waiter is one parked entry. Entries whose task was woken by other means
// (Cancel, Runnable, Destroy) are marked stale and skipped by Notify.
type waiter struct {
	id    TaskID
	stale bool
}

// Wait is a FIFO of parked tasks.
type Wait struct {
	s *Scheduler
	q *queue.Queue
}

// NewWait creates an empty wait queue bound to s.
func NewWait(s *Scheduler) *Wait {
	return &Wait{s: s, q: queue.New()}
}

// Wait parks the calling task until Notify selects it. A task may sit in
// at most one wait queue. Wait also returns when the task is made runnable
// by other means, so callers re-check their condition.
func (w *Wait) Wait() {
	t := w.s.current()
	assert.That(t.waiting == nil, "sched: task already parked in a wait queue")
	wt := &waiter{id: t.id}
	t.waiting = wt
	w.q.Add(wt)
	w.s.Schedule(true)
	if t.waiting == wt {
		wt.stale = true
		t.waiting = nil
	}
}

// Notify wakes the oldest parked task. It wakes at most one task and
// reports whether it did.
func (w *Wait) Notify() bool {
	for w.q.Length() > 0 {
		wt := w.q.Remove().(*waiter)
		if wt.stale {
			continue
		}
		wt.stale = true
		t := w.s.lookup(wt.id)
		if t == nil {
			continue
		}
		t.waiting = nil
		w.s.Runnable(wt.id)
		return true
	}
	return false
}

// Len reports how many tasks are parked.
func (w *Wait) Len() int {
	n := 0
	for i := 0; i < w.q.Length(); i++ {
		if !w.q.Get(i).(*waiter).stale {
			n++
		}
	}
	return n
}

// Destroy releases the queue. No task may still be parked on it.
func (w *Wait) Destroy() {
	assert.That(w.Len() == 0, "sched: destroying a wait queue with parked tasks")
	w.q = queue.New()
}
