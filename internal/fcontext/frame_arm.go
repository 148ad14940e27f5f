//go:build arm

package fcontext

// r4-r11, lr and d8-d15
const frameWords = 9 + 16

func alignSP(sp uintptr) uintptr { return sp &^ 63 }
