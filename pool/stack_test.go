// File: pool/stack_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fiber/api"
)

func TestAllocate_RoundsToPages(t *testing.T) {
	page := PageSize()
	for _, size := range []int{1, page - 1, page, page + 1, 64 << 10} {
		r, err := Allocate(size)
		require.NoError(t, err)
		usable := len(r.Usable())
		assert.GreaterOrEqual(t, usable, size)
		assert.Zero(t, usable%page, "usable part of %d is page aligned", size)
		assert.Equal(t, usable+GuardSize, r.Size())
		assert.Equal(t, GuardSize, r.Guard())

		r.Usable()[0] = 1
		r.Usable()[usable-1] = 1
		require.NoError(t, r.Free())
		require.NoError(t, r.Free())
	}
}

func TestAllocate_RejectsBadSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := Allocate(size)
		assert.ErrorIs(t, err, api.ErrInvalidArgument)
	}
}

func TestStackPool_ReusesAndZeroes(t *testing.T) {
	p := NewStackPool(1)
	a, err := p.Get(4096)
	require.NoError(t, err)
	a.Usable()[10] = 0xff
	require.NoError(t, p.Put(a))

	b, err := p.Get(4096)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Zero(t, b.Usable()[10])

	c, err := p.Get(4096)
	require.NoError(t, err)
	require.NoError(t, p.Put(b))
	require.NoError(t, p.Put(c), "over the limit: unmapped")

	st := p.Stats()
	assert.Equal(t, int64(2), st.Mapped)
	assert.Equal(t, int64(1), st.Reused)
	assert.Equal(t, int64(1), st.Cached)
	assert.Equal(t, int64(1), st.Unmapped)

	require.NoError(t, p.Close())
	assert.Zero(t, p.Stats().Cached)
	assert.Equal(t, int64(2), p.Stats().Unmapped)
}

func TestStackPool_SizesDoNotMix(t *testing.T) {
	p := NewStackPool(0)
	defer p.Close()
	small, err := p.Get(PageSize())
	require.NoError(t, err)
	require.NoError(t, p.Put(small))
	big, err := p.Get(16 * PageSize())
	require.NoError(t, err)
	assert.NotSame(t, small, big)
	require.NoError(t, p.Put(big))
}

func TestBufferPool(t *testing.T) {
	bp := NewBufferPool(32)
	b := bp.Get()
	require.Len(t, b, 32)
	b[0] = 7
	bp.Put(b[:4])
	again := bp.Get()
	assert.Len(t, again, 32)
	assert.Zero(t, again[0])
	bp.Put(make([]byte, 8))
}
