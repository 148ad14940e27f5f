//go:build !amd64 && !386 && !arm64 && !arm

package fcontext

const frameWords = 32

func alignSP(sp uintptr) uintptr { return sp &^ 63 }
