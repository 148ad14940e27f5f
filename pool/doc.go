// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for hioload-fiber: guarded task stacks mapped straight
// from the OS, a per-size cache of released stacks, and generic object
// and byte-buffer pools.
// See stack.go, stack_pool.go and objpool.go for implementation details.
package pool
