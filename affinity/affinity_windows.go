//go:build windows
// +build windows

// File: affinity/affinity_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows-specific implementation for setting thread CPU affinity.

package affinity

import (
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-fiber/api"
)

var (
	kernel32                  = windows.NewLazySystemDLL("kernel32.dll")
	procSetThreadAffinityMask = kernel32.NewProc("SetThreadAffinityMask")
)

// setAffinityPlatform sets thread affinity to a given CPU for Windows.
func setAffinityPlatform(cpuID int) error {
	if cpuID >= 64 {
		return api.Wrap("SetThreadAffinityMask", fmt.Errorf("cpu %d outside the thread group: %w", cpuID, api.ErrNotSupported))
	}
	mask := uintptr(1) << uint(cpuID)
	ret, _, err := procSetThreadAffinityMask.Call(uintptr(windows.CurrentThread()), mask)
	if ret == 0 {
		return api.Errno("SetThreadAffinityMask", err)
	}
	return nil
}

// Current is not tracked on Windows.
func Current() ([]int, error) {
	return nil, api.Wrap("affinity", api.ErrNotSupported)
}
