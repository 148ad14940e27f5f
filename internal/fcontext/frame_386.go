//go:build 386

package fcontext

// ebx esi edi ebp eip
const frameWords = 5

func alignSP(sp uintptr) uintptr { return ((sp - 4) &^ 63) + 4 }
