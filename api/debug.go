// Package api
// Author: momentics <momentics@gmail.com>
//
// Probe surface the scheduler, the event queue and the echo programs
// report through on shutdown.

package api

// Debug collects named probes and evaluates them on demand.
type Debug interface {
	// RegisterProbe adds or replaces the probe called name.
	RegisterProbe(name string, fn func() any)

	// Names lists the registered probes in sorted order.
	Names() []string

	// DumpState evaluates every probe and returns the results by name.
	DumpState() map[string]any
}
