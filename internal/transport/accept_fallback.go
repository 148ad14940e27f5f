//go:build darwin || solaris
// +build darwin solaris

package transport

import "golang.org/x/sys/unix"

// No accept4 here; the flags are applied after the fact.
func accept(fd int) (int, error) {
	nfd, _, err := unix.Accept(fd)
	if err != nil {
		return -1, err
	}
	if err := prepare(nfd); err != nil {
		_ = unix.Close(nfd)
		return -1, err
	}
	return nfd, nil
}
