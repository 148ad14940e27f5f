//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific implementation for setting thread CPU affinity.

package affinity

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-fiber/api"
)

// setAffinityPlatform restricts the calling thread to cpuID. Pid 0 names
// the calling thread for sched_setaffinity.
func setAffinityPlatform(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return api.Errno("sched_setaffinity", unix.SchedSetaffinity(0, &set))
}

// Current returns the CPUs the calling thread may run on.
func Current() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, api.Errno("sched_getaffinity", err)
	}
	var cpus []int
	for i := 0; i < MaxCPUs; i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}
