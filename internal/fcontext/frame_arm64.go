//go:build arm64

package fcontext

// x19-x30 and d8-d15
const frameWords = 12 + 8

func alignSP(sp uintptr) uintptr { return sp &^ 63 }
