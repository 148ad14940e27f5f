// File: sched/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sched

import "github.com/momentics/hioload-fiber/pool"

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Tasks     int
	Runnable  int
	Sleeping  int
	Created   uint64
	Exited    uint64
	Destroyed uint64
	Switches  uint64
	Stacks    pool.StackStats
}

// Stats returns the current counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Tasks:     s.Tasks(),
		Runnable:  s.runnable.n,
		Sleeping:  s.sleeping.n,
		Created:   s.created,
		Exited:    s.exited,
		Destroyed: s.destroyed,
		Switches:  s.switches,
		Stacks:    s.stacks.Stats(),
	}
}

// Map renders the counters for debug probes.
func (st Stats) Map() map[string]any {
	return map[string]any{
		"tasks":           st.Tasks,
		"runnable":        st.Runnable,
		"sleeping":        st.Sleeping,
		"created":         st.Created,
		"exited":          st.Exited,
		"destroyed":       st.Destroyed,
		"switches":        st.Switches,
		"stacks.mapped":   st.Stacks.Mapped,
		"stacks.reused":   st.Stacks.Reused,
		"stacks.cached":   st.Stacks.Cached,
		"stacks.unmapped": st.Stacks.Unmapped,
	}
}
