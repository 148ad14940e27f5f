// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Named probes dumped for runtime inspection.

package control

import (
	"sort"
	"sync"

	"github.com/momentics/hioload-fiber/api"
)

// DebugProbes holds registered probe functions. Probes reading driver
// state must only be dumped from the driver thread.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

var _ api.Debug = (*DebugProbes)(nil)

// NewDebugProbes returns an empty probe set.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe binds fn to name. A later call with the same name wins.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// Names lists the registered probes in order.
func (dp *DebugProbes) Names() []string {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	names := make([]string, 0, len(dp.probes))
	for k := range dp.probes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// DumpState runs each probe once and keys its result by probe name.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any, len(dp.probes))
	for k, fn := range dp.probes {
		out[k] = fn()
	}
	return out
}
