//go:build windows
// +build windows

// File: pool/stack_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"unsafe"

	"github.com/momentics/hioload-fiber/api"
	"golang.org/x/sys/windows"
)

func mapRegion(total, guard int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(total), windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return nil, api.Errno("VirtualAlloc", err)
	}
	var old uint32
	if err := windows.VirtualProtect(addr, uintptr(guard), windows.PAGE_NOACCESS, &old); err != nil {
		_ = windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
		return nil, api.Errno("VirtualProtect", err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), total), nil
}

func unmapRegion(mem []byte) error {
	addr := uintptr(unsafe.Pointer(&mem[0]))
	return api.Errno("VirtualFree", windows.VirtualFree(addr, 0, windows.MEM_RELEASE))
}
