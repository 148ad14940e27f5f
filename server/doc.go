// Package server
// Author: momentics <momentics@gmail.com>
//
// TCP echo server built on cooperative tasks. One OS thread runs the
// scheduler and the event queue; every connection is served by a reader
// task and a writer task sharing a ring buffer.
package server
