// File: server/ring.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "github.com/momentics/hioload-fiber/pool"

// RingSize is the per-connection echo buffer.
const RingSize = 1 << 10

// ring is a byte queue exposing its contiguous free and filled regions so
// the socket reads and writes straight into it. One byte always stays
// free, so readPos == writePos means empty.
type ring struct {
	buf      []byte
	readPos  int
	writePos int
}

var ringBuffers = pool.NewBufferPool(RingSize)

func newRing(buf []byte) ring { return ring{buf: buf} }

// filled is the contiguous run of bytes waiting to be sent.
func (r *ring) filled() []byte {
	if r.writePos >= r.readPos {
		return r.buf[r.readPos:r.writePos]
	}
	return r.buf[r.readPos:]
}

// free is the contiguous run of bytes a read may fill.
func (r *ring) free() []byte {
	switch {
	case r.writePos < r.readPos:
		return r.buf[r.writePos : r.readPos-1]
	case r.readPos == 0:
		return r.buf[r.writePos : len(r.buf)-1]
	default:
		return r.buf[r.writePos:]
	}
}

func (r *ring) produced(n int) { r.writePos = (r.writePos + n) % len(r.buf) }

func (r *ring) consumed(n int) { r.readPos = (r.readPos + n) % len(r.buf) }

// empty reports whether nothing is waiting to be sent.
func (r *ring) empty() bool { return r.readPos == r.writePos }
