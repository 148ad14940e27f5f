// File: sched/scheduler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"fortio.org/safecast"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/assert"
	"github.com/momentics/hioload-fiber/internal/fcontext"
	"github.com/momentics/hioload-fiber/internal/logging"
	"github.com/momentics/hioload-fiber/pool"
)

// DefaultStackSize is used when Create is given a non-positive size.
const DefaultStackSize = 64 << 10

// Scheduler runs tasks cooperatively on behalf of the goroutine that
// created it.
type Scheduler struct {
	tasks    []*task
	free     []uint32
	runnable taskList
	sleeping taskList

	stacks     *pool.StackPool
	stackCache int
	busy       atomic.Bool
	unwinding  *task
	log        zerolog.Logger

	created   uint64
	exited    uint64
	destroyed uint64
	switches  uint64
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLogger overrides the process logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithStackCache bounds the number of released stacks kept per size.
func WithStackCache(n int) Option {
	return func(s *Scheduler) { s.stackCache = n }
}

// New creates a scheduler whose root task is the calling goroutine.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		runnable: newList(),
		sleeping: newList(),
		log:      logging.Component("sched"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stacks = pool.NewStackPool(s.stackCache)
	root := &task{
		id:    makeID(0, 1),
		state: StateRunnable,
		ctx:   fcontext.NewRoot(),
		prev:  nilIndex,
		next:  nilIndex,
	}
	s.tasks = append(s.tasks, root)
	s.pushBack(&s.runnable, root)
	return s
}

func (s *Scheduler) enter(op string) {
	if !s.busy.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("sched: concurrent %s", op))
	}
}

func (s *Scheduler) leave() { s.busy.Store(false) }

func (s *Scheduler) lookup(id TaskID) *task {
	idx := id.index()
	if int(idx) >= len(s.tasks) {
		return nil
	}
	t := s.tasks[idx]
	if t.id != id || t.state == StateFree {
		return nil
	}
	return t
}

func (s *Scheduler) current() *task {
	assert.That(s.runnable.head != nilIndex, "sched: runnable queue empty while a task runs")
	return s.tasks[s.runnable.head]
}

func (s *Scheduler) root() *task { return s.tasks[0] }

// Create allocates a stack of at least stackSize bytes and queues a new
// task at the tail of the runnable queue. The task runs entry(arg) when it
// is first selected; returning from entry exits the task.
func (s *Scheduler) Create(stackSize int, entry func(any), arg any) (TaskID, error) {
	if entry == nil {
		return NoTask, api.Wrap("task create", api.ErrInvalidArgument)
	}
	if stackSize <= 0 {
		stackSize = DefaultStackSize
	}
	s.enter("create")
	defer s.leave()

	region, err := s.stacks.Get(stackSize)
	if err != nil {
		return NoTask, err
	}
	t, err := s.allocSlot()
	if err != nil {
		_ = s.stacks.Put(region)
		return NoTask, err
	}
	ctx, ok := fcontext.New(region.Usable(), uint64(t.id), s.trampoline)
	if !ok {
		s.releaseSlot(t)
		_ = s.stacks.Put(region)
		return NoTask, api.Wrap("task create", fmt.Errorf("stack of %d bytes: %w", stackSize, api.ErrInvalidArgument))
	}
	t.ctx, t.region = ctx, region
	t.entry, t.arg = entry, arg
	t.state = StateRunnable
	s.pushBack(&s.runnable, t)
	s.created++
	s.log.Debug().Stringer("task", t.id).Int("stack", region.Size()-region.Guard()).Msg("task created")
	return t.id, nil
}

func (s *Scheduler) allocSlot() (*task, error) {
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		return s.tasks[idx], nil
	}
	idx, err := safecast.Conv[int32](len(s.tasks))
	if err != nil {
		return nil, api.Wrap("task create", api.ErrOverflow)
	}
	t := &task{id: makeID(uint32(idx), 1), prev: nilIndex, next: nilIndex}
	s.tasks = append(s.tasks, t)
	return t, nil
}

func (s *Scheduler) releaseSlot(t *task) {
	gen := t.id.gen() + 1
	if gen == 0 {
		gen = 1
	}
	idx := t.id.index()
	*t = task{id: makeID(idx, gen), prev: nilIndex, next: nilIndex}
	s.free = append(s.free, idx)
}

func (s *Scheduler) trampoline(c *fcontext.Context) {
	t := s.lookup(TaskID(c.StartKey()))
	assert.That(t != nil && t.ctx == c, "sched: start block names an unknown task")
	defer s.finish(t)
	t.entry(t.arg)
	t.returned = true
}

// Self returns the task that is currently executing.
func (s *Scheduler) Self() TaskID { return s.current().id }

// Root returns the root task, the goroutine that created the scheduler.
func (s *Scheduler) Root() TaskID { return s.root().id }

// Runnable moves a sleeping task to the tail of the runnable queue. It is
// a no-op for runnable, exited or unknown tasks.
func (s *Scheduler) Runnable(id TaskID) {
	t := s.lookup(id)
	if t == nil || t.state != StateSleeping {
		return
	}
	s.enter("runnable")
	s.remove(&s.sleeping, t)
	t.state = StateRunnable
	s.pushBack(&s.runnable, t)
	s.leave()
}

// pickNext returns the runnable head, waking the root task when the
// runnable queue is empty.
func (s *Scheduler) pickNext() *task {
	if s.runnable.head == nilIndex {
		r := s.root()
		s.unlink(r)
		r.state = StateRunnable
		s.pushBack(&s.runnable, r)
	}
	return s.tasks[s.runnable.head]
}

// Schedule suspends the caller. With sleep set the caller parks on the
// sleeping queue until Runnable is called for it; otherwise it goes to the
// tail of the runnable queue. Schedule returns when the caller is selected
// again.
func (s *Scheduler) Schedule(sleep bool) {
	assert.That(s.unwinding == nil, "sched: destroyed task cannot yield")
	s.enter("schedule")
	prev := s.current()
	s.remove(&s.runnable, prev)
	if sleep {
		prev.state = StateSleeping
		s.pushBack(&s.sleeping, prev)
	} else {
		prev.state = StateRunnable
		s.pushBack(&s.runnable, prev)
	}
	next := s.pickNext()
	if next == prev {
		s.leave()
		return
	}
	s.switches++
	s.leave()
	fcontext.Switch(prev.ctx, next.ctx)
}

// Exit terminates the calling task. The task leaves both queues, control
// moves to the next runnable task, and cleanup(arg) runs there once the
// exited task has stopped. A nil cleanup destroys the task. Exit never
// returns and must not be called by the root task.
func (s *Scheduler) Exit(arg any, cleanup func(any)) {
	assert.That(s.unwinding == nil, "sched: destroyed task cannot exit")
	t := s.current()
	assert.That(t != s.root(), "sched: root task cannot exit")
	t.exitFn, t.exitArg = cleanup, arg
	t.returned = true
	runtime.Goexit()
}

// finish runs as the outermost deferred call of every task goroutine.
func (s *Scheduler) finish(t *task) {
	if t.ctx.Killed() || !t.returned {
		return
	}
	s.enter("exit")
	s.remove(&s.runnable, t)
	t.state = StateExited
	s.exited++
	next := s.pickNext()
	id, cleanup, arg := t.id, t.exitFn, t.exitArg
	t.exitFn, t.exitArg = nil, nil
	s.switches++
	s.leave()
	s.log.Debug().Stringer("task", id).Stringer("next", next.id).Msg("task exited")

	fcontext.Handoff(t.ctx, next.ctx, func() {
		if cleanup == nil {
			if err := s.Destroy(id); err != nil {
				s.log.Warn().Err(err).Stringer("task", id).Msg("release exited task")
			}
			return
		}
		cleanup(arg)
	})
}

// Destroy tears a task down and releases its stack. The task must not be
// the one executing. A task parked mid-call is unwound: its deferred calls
// run with the task already marked exited, so they may close handles and
// wake other tasks but must not yield. Unknown or already destroyed IDs
// are ignored.
func (s *Scheduler) Destroy(id TaskID) error {
	t := s.lookup(id)
	if t == nil || t == s.unwinding {
		return nil
	}
	assert.That(t != s.root(), "sched: root task cannot be destroyed")
	assert.That(t != s.current(), "sched: task cannot destroy itself, use Exit")

	s.enter("destroy")
	s.unlink(t)
	t.state = StateExited
	if t.waiting != nil {
		t.waiting.stale = true
		t.waiting = nil
	}
	outer := s.unwinding
	s.unwinding = t
	s.leave()

	fcontext.Kill(t.ctx)

	s.enter("destroy")
	defer s.leave()
	s.unwinding = outer
	region := t.region
	s.releaseSlot(t)
	s.destroyed++
	s.log.Debug().Stringer("task", id).Msg("task destroyed")
	return s.stacks.Put(region)
}

// State reports the lifecycle state of a task; unknown IDs are StateFree.
func (s *Scheduler) State(id TaskID) State {
	if t := s.lookup(id); t != nil {
		return t.state
	}
	return StateFree
}

// Stack returns the task-local arena carved out of the task's stack.
// The bytes stay valid until the task is destroyed.
func (s *Scheduler) Stack(id TaskID) []byte {
	t := s.lookup(id)
	if t == nil || t.ctx == nil {
		return nil
	}
	return t.ctx.Arena()
}

// Cancel flags a task as canceled and makes it runnable. The flag is
// sticky; blocking helpers observe it after they are woken.
func (s *Scheduler) Cancel(id TaskID) {
	t := s.lookup(id)
	if t == nil || t.state == StateExited {
		return
	}
	t.canceled = true
	s.Runnable(id)
}

// Canceled reports whether the current task has been canceled.
func (s *Scheduler) Canceled() bool { return s.current().canceled }

// Tasks counts live tasks other than the root.
func (s *Scheduler) Tasks() int {
	n := 0
	for _, t := range s.tasks[1:] {
		if t.state == StateRunnable || t.state == StateSleeping {
			n++
		}
	}
	return n
}

// RunnableCount reports the length of the runnable queue.
func (s *Scheduler) RunnableCount() int { return s.runnable.n }

// Close destroys every remaining task and unmaps cached stacks. It must be
// called by the root task.
func (s *Scheduler) Close() error {
	assert.That(s.current() == s.root(), "sched: Close outside the root task")
	var errs []error
	for _, t := range s.tasks[1:] {
		if t.state == StateFree {
			continue
		}
		if err := s.Destroy(t.id); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.stacks.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("sched: close: %w", errs[0])
	}
	return nil
}
