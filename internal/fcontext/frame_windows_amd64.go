//go:build amd64 && windows

package fcontext

// rbx rbp rdi rsi r12-r15 rip, xmm6-xmm15 and the TIB stack bounds.
const frameWords = 9 + 20 + 3

func alignSP(sp uintptr) uintptr { return ((sp - 8) &^ 63) + 8 }
