//go:build amd64 && !windows

package fcontext

// rbx rbp r12 r13 r14 r15 rip
const frameWords = 7

// The System V ABI wants rsp+8 to be 16-byte aligned at function entry;
// the top is kept on a 64-byte line.
func alignSP(sp uintptr) uintptr { return ((sp - 8) &^ 63) + 8 }
