// File: sched/semaphore.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

import (
	"fmt"
	"math"

	"fortio.org/safecast"

	"github.com/momentics/hioload-fiber/api"
)

// SemaphoreMax is the largest value a Semaphore can hold.
const SemaphoreMax = math.MaxInt32

// Semaphore is a counting semaphore for tasks of one scheduler.
//
// Wait re-checks the count after every wake because a woken task may find
// the unit already taken by a task that ran first. That is only sound
// while a single task executes at a time.
type Semaphore struct {
	s     *Scheduler
	value int32
	wait  *Wait
}

// NewSemaphore creates a semaphore holding initial units.
func NewSemaphore(s *Scheduler, initial int) (*Semaphore, error) {
	v, err := safecast.Conv[int32](initial)
	if err != nil || v < 0 {
		return nil, api.Wrap("semaphore init", fmt.Errorf("initial value %d: %w", initial, api.ErrInvalidArgument))
	}
	return &Semaphore{s: s, value: v, wait: NewWait(s)}, nil
}

// Post adds one unit and wakes the oldest waiter. It fails with
// api.ErrOverflow when the semaphore is full.
func (sem *Semaphore) Post() error {
	if sem.value == SemaphoreMax {
		return api.Wrap("semaphore post", api.ErrOverflow)
	}
	sem.value++
	sem.wait.Notify()
	return nil
}

// Wait takes one unit, parking while none is available. It returns
// api.ErrCanceled if the calling task is canceled while waiting.
func (sem *Semaphore) Wait() error {
	for sem.value <= 0 {
		if sem.s.Canceled() {
			return api.Wrap("semaphore wait", api.ErrCanceled)
		}
		sem.wait.Wait()
	}
	sem.value--
	return nil
}

// Value returns the current count.
func (sem *Semaphore) Value() int { return int(sem.value) }

// Destroy releases the semaphore. No task may be waiting on it.
func (sem *Semaphore) Destroy() { sem.wait.Destroy() }
