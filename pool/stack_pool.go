// File: pool/stack_pool.go
// Package pool caches released stack regions per size.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"errors"

	"github.com/eapache/queue"
)

const defaultStackCache = 64

// StackStats reports allocator activity.
type StackStats struct {
	Mapped   int64 // regions obtained from the OS
	Reused   int64 // regions served from the cache
	Unmapped int64 // regions returned to the OS
	Cached   int64 // regions currently parked in the cache
}

// StackPool hands out guarded regions and keeps up to limit released
// regions of each size for reuse. It is not safe for concurrent use; the
// scheduler owning it serialises every call.
type StackPool struct {
	limit int
	free  map[int]*queue.Queue
	stats StackStats
}

// NewStackPool creates a cache keeping at most limit regions per size.
// A non-positive limit selects the default.
func NewStackPool(limit int) *StackPool {
	if limit <= 0 {
		limit = defaultStackCache
	}
	return &StackPool{limit: limit, free: make(map[int]*queue.Queue)}
}

// Get returns a region with at least size usable bytes, zeroed.
func (p *StackPool) Get(size int) (*Region, error) {
	if size > 0 {
		page := PageSize()
		total := (size+page-1)/page*page + GuardSize
		if q := p.free[total]; q != nil && q.Length() > 0 {
			r := q.Remove().(*Region)
			p.stats.Reused++
			p.stats.Cached--
			clear(r.Usable())
			return r, nil
		}
	}
	r, err := Allocate(size)
	if err != nil {
		return nil, err
	}
	p.stats.Mapped++
	return r, nil
}

// Put hands a region back. It is cached when there is room and unmapped
// otherwise.
func (p *StackPool) Put(r *Region) error {
	if r == nil || r.freed {
		return nil
	}
	q := p.free[r.Size()]
	if q == nil {
		q = queue.New()
		p.free[r.Size()] = q
	}
	if q.Length() < p.limit {
		q.Add(r)
		p.stats.Cached++
		return nil
	}
	p.stats.Unmapped++
	return r.Free()
}

// Close unmaps every cached region.
func (p *StackPool) Close() error {
	var errs []error
	for size, q := range p.free {
		for q.Length() > 0 {
			r := q.Remove().(*Region)
			p.stats.Cached--
			p.stats.Unmapped++
			if err := r.Free(); err != nil {
				errs = append(errs, err)
			}
		}
		delete(p.free, size)
	}
	return errors.Join(errs...)
}

// Stats returns a copy of the counters.
func (p *StackPool) Stats() StackStats { return p.stats }
