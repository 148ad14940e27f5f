// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package api

import "io"

// Conn is a connection whose blocking calls park the calling task
// instead of the OS thread.
type Conn interface {
	io.ReadWriteCloser
	// Recv performs one read attempt; a zero count means end of stream.
	Recv(buf []byte) (int, error)
	// Send performs one write attempt and may write less than len(buf).
	Send(buf []byte) (int, error)
}

