// File: sched/task.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

import (
	"fmt"

	"github.com/momentics/hioload-fiber/internal/fcontext"
	"github.com/momentics/hioload-fiber/pool"
)

// TaskID is a stable handle to a task: arena index in the low half,
// slot generation in the high half. The zero value names no task.
type TaskID uint64

// NoTask is the zero TaskID.
const NoTask TaskID = 0

func makeID(index, gen uint32) TaskID { return TaskID(uint64(gen)<<32 | uint64(index)) }

func (id TaskID) index() uint32 { return uint32(id) }
func (id TaskID) gen() uint32   { return uint32(id >> 32) }

func (id TaskID) String() string {
	if id == NoTask {
		return "task(none)"
	}
	return fmt.Sprintf("task(%d.%d)", id.index(), id.gen())
}

// State is the lifecycle position of a task.
type State uint8

const (
	StateFree State = iota
	StateRunnable
	StateSleeping
	StateExited
)

func (s State) String() string {
	switch s {
	case StateRunnable:
		return "runnable"
	case StateSleeping:
		return "sleeping"
	case StateExited:
		return "exited"
	default:
		return "free"
	}
}

const nilIndex = -1

type task struct {
	id    TaskID
	state State
	prev  int32
	next  int32

	ctx    *fcontext.Context
	region *pool.Region
	entry  func(any)
	arg    any

	exitFn   func(any)
	exitArg  any
	returned bool

	waiting  *waiter
	canceled bool
}

// taskList is an intrusive FIFO threaded through the arena by index.
type taskList struct {
	head int32
	tail int32
	n    int
}

func newList() taskList { return taskList{head: nilIndex, tail: nilIndex} }

func (s *Scheduler) pushBack(l *taskList, t *task) {
	idx := int32(t.id.index())
	t.prev, t.next = l.tail, nilIndex
	if l.tail == nilIndex {
		l.head = idx
	} else {
		s.tasks[l.tail].next = idx
	}
	l.tail = idx
	l.n++
}

func (s *Scheduler) remove(l *taskList, t *task) {
	if t.prev == nilIndex {
		l.head = t.next
	} else {
		s.tasks[t.prev].next = t.next
	}
	if t.next == nilIndex {
		l.tail = t.prev
	} else {
		s.tasks[t.next].prev = t.prev
	}
	t.prev, t.next = nilIndex, nilIndex
	l.n--
}

// listOf returns the queue a task is threaded on, if any.
func (s *Scheduler) listOf(t *task) *taskList {
	switch t.state {
	case StateRunnable:
		return &s.runnable
	case StateSleeping:
		return &s.sleeping
	}
	return nil
}

func (s *Scheduler) unlink(t *task) {
	if l := s.listOf(t); l != nil {
		s.remove(l, t)
	}
}

func (s *Scheduler) ids(l *taskList) []TaskID {
	out := make([]TaskID, 0, l.n)
	for i := l.head; i != nilIndex; i = s.tasks[i].next {
		out = append(out, s.tasks[i].id)
	}
	return out
}
