// File: pool/objpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "sync"

// ObjectPool hands out reusable values.
type ObjectPool[T any] interface {
	Get() T
	Put(T)
}

// SyncPool is an ObjectPool over sync.Pool. It is safe for concurrent use
// and may drop idle values at any garbage collection.
type SyncPool[T any] struct {
	pool sync.Pool
}

// NewSyncPool creates a pool that calls creator when it runs dry.
func NewSyncPool[T any](creator func() T) *SyncPool[T] {
	sp := &SyncPool[T]{}
	sp.pool.New = func() any { return creator() }
	return sp
}

func (sp *SyncPool[T]) Get() T { return sp.pool.Get().(T) }

func (sp *SyncPool[T]) Put(obj T) { sp.pool.Put(obj) }

// BufferPool recycles byte buffers of one fixed size.
type BufferPool struct {
	size int
	p    *SyncPool[*[]byte]
}

var _ ObjectPool[[]byte] = (*BufferPool)(nil)

// NewBufferPool creates a pool of size-byte buffers.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		size: size,
		p: NewSyncPool(func() *[]byte {
			b := make([]byte, size)
			return &b
		}),
	}
}

// Size returns the buffer length handed out by Get.
func (bp *BufferPool) Size() int { return bp.size }

// Get returns a zeroed buffer of Size bytes.
func (bp *BufferPool) Get() []byte {
	b := *bp.p.Get()
	clear(b)
	return b
}

// Put recycles b. Buffers of a different capacity are left to the garbage
// collector.
func (bp *BufferPool) Put(b []byte) {
	if cap(b) != bp.size {
		return
	}
	b = b[:bp.size]
	bp.p.Put(&b)
}
