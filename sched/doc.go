// File: sched/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package sched is the cooperative task scheduler.
//
// A Scheduler owns an arena of tasks, a runnable queue and a sleeping
// queue. The head of the runnable queue is the task currently executing.
// Schedule is the only suspension point: it moves the caller to the tail
// of one of the queues and switches to the new runnable head, falling
// back to the root task (the goroutine that called New) when nothing else
// is runnable.
//
// Exactly one task runs at any instant. Scheduler methods must only be
// called by the running task; concurrent entry panics.
package sched
