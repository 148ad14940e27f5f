//go:build windows
// +build windows

package api

// Winsock and Win32 failures carry native codes.
const errnoDomain = DomainOS
