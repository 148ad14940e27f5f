// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

// Package fcontext implements the task context switch.
//
// Every task owns a goroutine that runs only while it holds the baton.
// Switch passes the baton to another context and parks the caller until
// the baton comes back, so at most one task executes at a time and each
// task observes Switch as a call that returns later.
//
// The stack region of a task still carries the layout the scheduler
// relies on: a start block at the bottom of the usable area naming the
// task, and a frame record at the ABI-aligned top that is validated on
// every resume. The bytes in between form the task-local arena.
package fcontext
