//go:build !windows
// +build !windows

package api

const errnoDomain = DomainErrno
