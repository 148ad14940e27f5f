//go:build windows
// +build windows

// control/platform_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows-specific metrics/debug introspection points.

package control

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/windows"
)

// RegisterPlatformProbes sets Windows-specific debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	registerCommonProbes(dp)
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.kernel", func() any {
		v := windows.RtlGetVersion()
		return fmt.Sprintf("%d.%d.%d", v.MajorVersion, v.MinorVersion, v.BuildNumber)
	})
}
