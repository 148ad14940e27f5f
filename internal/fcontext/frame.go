// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package fcontext

import (
	"unsafe"

	"github.com/momentics/hioload-fiber/internal/assert"
)

const (
	frameMagic = 0x6872_6c64_6672_616d
	startMagic = 0x6872_6c64_7374_7274

	ptrSize = unsafe.Sizeof(uintptr(0))
)

// frameRecord sits at the aligned top of a task stack.
type frameRecord struct {
	magic    uint64
	key      uint64
	switches uint64
}

// startBlock sits at the bottom of the usable area and names the entry.
type startBlock struct {
	magic uint64
	key   uint64
}

// FrameSize is the space reserved below the aligned top for a register
// save area of the current architecture. Only the frame record at its base
// is written; task code runs on its goroutine stack, so the register words
// are reserved and never used.
const FrameSize = (max(frameWords*int(ptrSize), int(unsafe.Sizeof(frameRecord{}))) + 15) &^ 15

const startSize = int(unsafe.Sizeof(startBlock{}))

// Layout describes where the start block and the frame live in a usable
// stack area of length n starting at base.
type Layout struct {
	Start int // offset of the start block
	Frame int // offset of the frame record
	Top   int // offset of the aligned stack top the frame resumes at
}

// LayoutFor computes the frame placement for a usable area.
func LayoutFor(base uintptr, n int) (Layout, bool) {
	top := AlignSP(base + uintptr(n))
	if top < base+uintptr(startSize+FrameSize) {
		return Layout{}, false
	}
	top -= base
	return Layout{
		Start: 0,
		Frame: int(top) - FrameSize,
		Top:   int(top),
	}, true
}

// AlignSP applies the target ABI's stack pointer alignment.
func AlignSP(sp uintptr) uintptr { return alignSP(sp) }

func (r *frameRecord) check(key uint64) {
	assert.Thatf(r.magic == frameMagic, "fcontext: corrupted frame (magic %#x)", r.magic)
	assert.Thatf(r.key == key, "fcontext: frame key %d does not match task %d", r.key, key)
	top := uintptr(unsafe.Pointer(r)) + uintptr(FrameSize)
	assert.Thatf(alignSP(top) == top, "fcontext: misaligned stack pointer %#x", top)
}
