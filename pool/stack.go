// File: pool/stack.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Guarded task stack regions. Each region starts with a no-access guard
// zone followed by the read/write area handed to a task.

package pool

import (
	"fmt"
	"os"

	"github.com/momentics/hioload-fiber/api"
)

// GuardSize is the no-access zone placed below every stack.
const GuardSize = 1 << 20

// Region is one guarded stack mapping.
type Region struct {
	mem   []byte // whole mapping, guard first
	guard int
	freed bool
}

// PageSize returns the system page size.
func PageSize() int { return os.Getpagesize() }

// Allocate reserves a region whose usable part holds at least size bytes.
func Allocate(size int) (*Region, error) {
	if size <= 0 {
		return nil, api.Wrap("stack allocate", fmt.Errorf("size %d: %w", size, api.ErrInvalidArgument))
	}
	page := PageSize()
	total := (size+page-1)/page*page + GuardSize
	if total < size {
		return nil, api.Wrap("stack allocate", api.ErrOverflow)
	}
	mem, err := mapRegion(total, GuardSize)
	if err != nil {
		return nil, err
	}
	return &Region{mem: mem, guard: GuardSize}, nil
}

// Usable returns the read/write part of the region.
func (r *Region) Usable() []byte { return r.mem[r.guard:] }

// Guard returns the guard size in bytes.
func (r *Region) Guard() int { return r.guard }

// Size returns the total mapping size including the guard.
func (r *Region) Size() int { return len(r.mem) }

// Free unmaps the region. Calling Free twice is a no-op.
func (r *Region) Free() error {
	if r.freed {
		return nil
	}
	r.freed = true
	return unmapRegion(r.mem)
}
