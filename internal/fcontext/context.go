// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package fcontext

import (
	"runtime"
	"unsafe"

	"github.com/momentics/hioload-fiber/internal/assert"
)

// Context is the resumable state of one task. Execution happens on a
// goroutine that holds the baton between switches; the stack region only
// carries the start block, the frame record and the task-local arena, and
// nothing executes on it.
type Context struct {
	key    uint64
	mem    []byte
	frame  *frameRecord
	start  *startBlock
	arena  []byte
	entry  func(*Context)
	resume chan struct{}
	done   chan struct{}
	hook   func()

	started bool
	killed  bool
}

// NewRoot returns the context of the goroutine that drives a scheduler.
// It has no stack region of its own and is already running.
func NewRoot() *Context {
	return &Context{
		resume:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		started: true,
	}
}

// New lays out the start block and frame record inside mem (the usable
// part of a stack region) and returns a context that, on its first
// resume, calls entry. It returns false when mem is too small.
func New(mem []byte, key uint64, entry func(*Context)) (*Context, bool) {
	if len(mem) == 0 {
		return nil, false
	}
	base := uintptr(unsafe.Pointer(&mem[0]))
	lay, ok := LayoutFor(base, len(mem))
	if !ok {
		return nil, false
	}
	c := &Context{
		key:    key,
		mem:    mem,
		frame:  (*frameRecord)(unsafe.Pointer(&mem[lay.Frame])),
		start:  (*startBlock)(unsafe.Pointer(&mem[lay.Start])),
		arena:  mem[startSize:lay.Frame:lay.Frame],
		entry:  entry,
		resume: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	*c.start = startBlock{magic: startMagic, key: key}
	*c.frame = frameRecord{magic: frameMagic, key: key}
	return c, true
}

// StartKey reads the key stored in the start block.
func (c *Context) StartKey() uint64 {
	assert.That(c.start != nil, "fcontext: root context has no start block")
	assert.Thatf(c.start.magic == startMagic, "fcontext: corrupted start block (magic %#x)", c.start.magic)
	return c.start.key
}

// Arena returns the task-local bytes between the start block and the frame.
func (c *Context) Arena() []byte { return c.arena }

// Switches reports how many times the context has been resumed.
func (c *Context) Switches() uint64 {
	if c.frame == nil {
		return 0
	}
	return c.frame.switches
}

// Started reports whether the context's goroutine has been launched.
func (c *Context) Started() bool { return c.started }

// Finished reports whether the context's goroutine has terminated.
func (c *Context) Finished() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Killed reports whether Kill unwound the context.
func (c *Context) Killed() bool { return c.killed }

// Switch hands the baton from save to restore and returns once another
// context switches back to save.
func Switch(save, restore *Context) {
	assert.That(save != restore, "fcontext: switch to self")
	restore.transfer()
	save.park()
}

// Handoff passes the baton from a terminating context for good. hook runs
// on restore once from has fully stopped.
func Handoff(from, to *Context, hook func()) {
	assert.That(from != to, "fcontext: handoff to self")
	done := from.done
	if hook != nil {
		to.hook = func() {
			<-done
			hook()
		}
	}
	to.transfer()
}

// Kill unwinds a parked context and waits for its goroutine to end. A
// context that never started is simply marked finished.
func Kill(c *Context) {
	if !c.started {
		c.started, c.killed = true, true
		close(c.done)
		return
	}
	if c.Finished() {
		return
	}
	c.killed = true
	c.resume <- struct{}{}
	<-c.done
}

func (c *Context) transfer() {
	if c.frame != nil {
		c.frame.check(c.key)
		c.frame.switches++
	}
	if !c.started {
		c.started = true
		go c.run()
		return
	}
	c.resume <- struct{}{}
}

func (c *Context) park() {
	<-c.resume
	if c.killed {
		runtime.Goexit()
	}
	c.runHook()
}

func (c *Context) runHook() {
	if h := c.hook; h != nil {
		c.hook = nil
		h()
	}
}

func (c *Context) run() {
	defer close(c.done)
	c.runHook()
	c.entry(c)
}
