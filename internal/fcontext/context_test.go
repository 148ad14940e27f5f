package fcontext

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStack(t *testing.T, n int) []byte {
	t.Helper()
	// Over-allocate so the slice start is not accidentally aligned.
	return make([]byte, n+64)[3:]
}

func TestAlignSP_Idempotent(t *testing.T) {
	for sp := uintptr(1 << 20); sp < 1<<20+256; sp++ {
		a := AlignSP(sp)
		assert.LessOrEqual(t, a, sp)
		assert.Less(t, sp-a, uintptr(64))
		assert.Equal(t, a, AlignSP(a))
	}
}

func TestLayout_FrameBelowAlignedTop(t *testing.T) {
	mem := testStack(t, 4096)
	base := uintptr(unsafe.Pointer(&mem[0]))
	lay, ok := LayoutFor(base, len(mem))
	require.True(t, ok)
	assert.Equal(t, lay.Top-FrameSize, lay.Frame)
	assert.LessOrEqual(t, lay.Top, len(mem))
	assert.Equal(t, AlignSP(base+uintptr(lay.Top)), base+uintptr(lay.Top))

	_, ok = LayoutFor(base, 8)
	assert.False(t, ok)
}

func TestNew_WritesStartBlock(t *testing.T) {
	mem := testStack(t, 4096)
	c, ok := New(mem, 42, func(*Context) {})
	require.True(t, ok)
	assert.Equal(t, uint64(42), c.StartKey())
	assert.NotEmpty(t, c.Arena())
	assert.False(t, c.Started())
}

func TestFrame_CorruptionPanics(t *testing.T) {
	mem := testStack(t, 4096)
	c, ok := New(mem, 7, func(*Context) {})
	require.True(t, ok)
	c.frame.magic = 0
	assert.Panics(t, func() { c.transfer() })
}

func TestSwitch_PingPong(t *testing.T) {
	root := NewRoot()
	var trace []int
	var task *Context
	task, ok := New(testStack(t, 8192), 1, func(c *Context) {
		for i := 0; i < 3; i++ {
			trace = append(trace, 100+i)
			Switch(c, root)
		}
	})
	require.True(t, ok)

	for i := 0; i < 3; i++ {
		trace = append(trace, i)
		Switch(root, task)
	}
	assert.Equal(t, []int{0, 100, 1, 101, 2, 102}, trace)
	assert.Equal(t, uint64(3), task.Switches())

	Kill(task)
	assert.True(t, task.Finished())
	assert.True(t, task.Killed())
}

func TestHandoff_HookRunsAfterExit(t *testing.T) {
	root := NewRoot()
	var hookSawFinished bool
	var task *Context
	task, ok := New(testStack(t, 8192), 2, func(c *Context) {
		Handoff(c, root, func() { hookSawFinished = task.Finished() })
	})
	require.True(t, ok)

	Switch(root, task)
	assert.True(t, hookSawFinished)
}

func TestKill_NeverStarted(t *testing.T) {
	c, ok := New(testStack(t, 4096), 3, func(*Context) { t.Fatal("must not run") })
	require.True(t, ok)
	Kill(c)
	assert.True(t, c.Finished())
}
