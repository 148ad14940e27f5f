// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_windows.go, etc.) guarded by build tags.

package affinity

import (
	"fmt"

	"github.com/momentics/hioload-fiber/api"
)

// MaxCPUs bounds the CPU indices accepted by SetAffinity.
const MaxCPUs = 1024

// SetAffinity pins the calling OS thread to one logical CPU. The caller
// must hold the thread with runtime.LockOSThread for the pin to follow
// the goroutine.
func SetAffinity(cpuID int) error {
	if cpuID < 0 || cpuID >= MaxCPUs {
		return api.Wrap("set affinity", fmt.Errorf("cpu %d: %w", cpuID, api.ErrInvalidArgument))
	}
	return setAffinityPlatform(cpuID)
}
