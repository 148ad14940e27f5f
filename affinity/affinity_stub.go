//go:build !linux && !windows
// +build !linux,!windows

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package affinity

import "github.com/momentics/hioload-fiber/api"

func setAffinityPlatform(int) error {
	return api.Wrap("set affinity", api.ErrNotSupported)
}

// Current is not available on this platform.
func Current() ([]int, error) {
	return nil, api.Wrap("affinity", api.ErrNotSupported)
}
