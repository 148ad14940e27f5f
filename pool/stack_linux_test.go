//go:build linux
// +build linux

// File: pool/stack_linux_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// mapping returns the permission field of the /proc/self/maps line
// covering addr.
func mapping(t *testing.T, addr uintptr) string {
	t.Helper()
	f, err := os.Open("/proc/self/maps")
	require.NoError(t, err)
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var lo, hi uintptr
		var perms string
		if _, err := fmt.Sscanf(sc.Text(), "%x-%x %s", &lo, &hi, &perms); err != nil {
			continue
		}
		if addr >= lo && addr < hi {
			return perms
		}
	}
	require.NoError(t, sc.Err())
	t.Fatalf("no mapping covers %#x", addr)
	return ""
}

func TestAllocate_GuardIsInaccessible(t *testing.T) {
	r, err := Allocate(64 << 10)
	require.NoError(t, err)
	defer r.Free()

	usable := uintptr(unsafe.Pointer(&r.Usable()[0]))
	require.True(t, strings.HasPrefix(mapping(t, usable-1), "---"), "byte below the stack is a guard")
	require.True(t, strings.HasPrefix(mapping(t, usable-uintptr(GuardSize)), "---"))
	require.True(t, strings.HasPrefix(mapping(t, usable), "rw-"))
}
