//go:build linux
// +build linux

// File: affinity/affinity_linux_test.go
// Author: momentics <momentics@gmail.com>

package affinity

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAffinity_PinsThread(t *testing.T) {
	// The pinned thread dies with the test goroutine instead of returning
	// to the scheduler's pool.
	runtime.LockOSThread()

	before, err := Current()
	require.NoError(t, err)
	require.NotEmpty(t, before)
	cpu := before[0]

	require.NoError(t, SetAffinity(cpu))
	after, err := Current()
	require.NoError(t, err)
	require.Equal(t, []int{cpu}, after)
}
