// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

// Package equeue multiplexes socket readiness and completion for tasks of
// one scheduler.
//
// An Equeue wraps a single kernel notification object: epoll on Linux,
// kqueue on the BSDs and Darwin, event ports on Solaris and an I/O
// completion port on Windows. Dequeue returns a batch of (key, readable,
// writable) events; keys come from a handle table and map back to the
// handle whose parked tasks should resume.
//
// Readiness backends never touch the kernel when interest changes.
// Subscribe and unsubscribe only queue the handle on a changed list, and
// the whole list is committed right before the next blocking wait, so a
// subscribe undone before that wait costs nothing. The completion backend
// issues every accept, receive and send at once and parks the caller until
// its completion packet arrives.
//
// Client and Server turn that into blocking-style calls: try the
// operation, and on would-block subscribe, yield to the scheduler,
// unsubscribe and retry once. Loop is the driver that runs on the root
// task, dequeues events and wakes the owners.
package equeue
