// Copyright 2025 momentics@gmail.com
// License: Apache 2.0

package equeue

import (
	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/internal/assert"
)

// Key identifies a handle in kernel notifications. The low half holds the
// slot index shifted past the reserved bits, the high half the slot
// generation, so keys of closed handles never alias live ones.
type Key uint64

const (
	reservedBits = 2
	reservedMask = 1<<reservedBits - 1
	maxSlots     = 1 << (32 - reservedBits)
)

// noKey is never handed out: generations start at one.
const noKey Key = 0

func makeKey(idx, gen uint32) Key { return Key(gen)<<32 | Key(idx<<reservedBits) }

func checkKey(k Key) {
	assert.Thatf(k&reservedMask == 0, "equeue: key %#x violates %d-bit alignment", uint64(k), reservedBits)
}

// table maps keys to handles.
type table struct {
	slots []*handle
	gens  []uint32
	free  []uint32
	live  int
}

func (t *table) insert(h *handle) error {
	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		if len(t.slots) >= maxSlots {
			return api.Wrap("equeue register", api.ErrOverflow)
		}
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, nil)
		t.gens = append(t.gens, 0)
	}
	t.gens[idx]++
	if t.gens[idx] == 0 {
		t.gens[idx] = 1
	}
	h.key = makeKey(idx, t.gens[idx])
	t.slots[idx] = h
	t.live++
	return nil
}

func (t *table) lookup(k Key) *handle {
	checkKey(k)
	idx := uint32(k) >> reservedBits
	if int(idx) >= len(t.slots) {
		return nil
	}
	h := t.slots[idx]
	if h == nil || h.key != k {
		return nil
	}
	return h
}

func (t *table) remove(h *handle) {
	idx := uint32(h.key) >> reservedBits
	if int(idx) < len(t.slots) && t.slots[idx] == h {
		t.slots[idx] = nil
		t.free = append(t.free, idx)
		t.live--
	}
}
