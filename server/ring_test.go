// File: server/ring_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_Regions(t *testing.T) {
	cases := []struct {
		read, write      int
		filled, freeSize int
	}{
		{0, 0, 0, 15},
		{1, 1, 0, 15},
		{6, 6, 0, 10},
		{14, 14, 0, 2},
		{15, 15, 0, 1},
		{0, 5, 5, 10},
		{1, 6, 5, 10},
		{0, 15, 15, 0},
		{5, 4, 11, 0},
		{5, 2, 11, 2},
		{10, 15, 5, 1},
	}
	for _, c := range cases {
		r := newRing(make([]byte, 16))
		r.readPos, r.writePos = c.read, c.write
		assert.Len(t, r.filled(), c.filled, "filled at read=%d write=%d", c.read, c.write)
		assert.Len(t, r.free(), c.freeSize, "free at read=%d write=%d", c.read, c.write)
	}
}

func TestRing_WrapsInOrder(t *testing.T) {
	r := newRing(make([]byte, 8))
	var out []byte
	next := byte(0)
	for round := 0; round < 20; round++ {
		in := r.free()
		for i := range in {
			in[i] = next
			next++
		}
		r.produced(len(in))
		f := r.filled()
		take := (len(f) + 1) / 2
		out = append(out, f[:take]...)
		r.consumed(take)
	}
	for !r.empty() {
		f := r.filled()
		out = append(out, f...)
		r.consumed(len(f))
	}
	for i, b := range out {
		assert.Equal(t, byte(i), b)
	}
	assert.Len(t, out, int(next))
}
