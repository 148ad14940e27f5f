//go:build !linux && !windows
// +build !linux,!windows

// control/platform_other.go
// Author: momentics <momentics@gmail.com>

package control

import "runtime"

// RegisterPlatformProbes sets the probes available everywhere.
func RegisterPlatformProbes(dp *DebugProbes) {
	registerCommonProbes(dp)
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
}
