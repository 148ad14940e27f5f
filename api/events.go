// File: api/events.go
// Package api defines core event types for hioload-fiber.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Interest is the readiness mask a handle waits for.
type Interest uint8

const (
	EventIn Interest = 1 << iota
	EventOut

	// EventMask covers every valid interest bit.
	EventMask = EventIn | EventOut
)

// String returns a compact rendering such as "in|out".
func (i Interest) String() string {
	switch i & EventMask {
	case EventIn:
		return "in"
	case EventOut:
		return "out"
	case EventMask:
		return "in|out"
	}
	return "none"
}
