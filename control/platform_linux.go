//go:build linux
// +build linux

// control/platform_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific debug probes.

package control

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// RegisterPlatformProbes sets Linux-specific debug metrics.
func RegisterPlatformProbes(dp *DebugProbes) {
	registerCommonProbes(dp)
	dp.RegisterProbe("platform.cpus", func() any {
		var set unix.CPUSet
		if err := unix.SchedGetaffinity(0, &set); err != nil {
			return runtime.NumCPU()
		}
		return set.Count()
	})
	dp.RegisterProbe("platform.kernel", func() any {
		var uts unix.Utsname
		if err := unix.Uname(&uts); err != nil {
			return "unknown"
		}
		return unix.ByteSliceToString(uts.Release[:])
	})
}
