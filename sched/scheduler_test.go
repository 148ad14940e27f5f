package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fiber/api"
)

// drain lets the tasks run until none is left or the round limit hits.
func drain(t *testing.T, s *Scheduler) {
	t.Helper()
	for i := 0; s.Tasks() > 0 && i < 10000; i++ {
		s.Schedule(true)
	}
	require.Zero(t, s.Tasks(), "tasks left behind")
}

func TestCreate_AppendsToRunnable(t *testing.T) {
	s := New()
	defer s.Close()
	a, err := s.Create(0, func(any) {}, nil)
	require.NoError(t, err)
	b, err := s.Create(16<<10, func(any) {}, nil)
	require.NoError(t, err)

	assert.Equal(t, []TaskID{s.Root(), a, b}, s.ids(&s.runnable))
	assert.Equal(t, StateRunnable, s.State(a))
	assert.Equal(t, s.Root(), s.Self())
	drain(t, s)
}

func TestCreate_NilEntry(t *testing.T) {
	s := New()
	_, err := s.Create(0, nil, nil)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestSchedule_RoundRobin(t *testing.T) {
	s := New()
	defer s.Close()
	const tasks, rounds = 4, 3
	var order []int
	for i := 0; i < tasks; i++ {
		_, err := s.Create(0, func(arg any) {
			for r := 0; r < rounds; r++ {
				order = append(order, arg.(int))
				s.Schedule(false)
			}
		}, i)
		require.NoError(t, err)
	}
	drain(t, s)

	require.Len(t, order, tasks*rounds)
	for r := 0; r < rounds; r++ {
		assert.Equal(t, []int{0, 1, 2, 3}, order[r*tasks:(r+1)*tasks], "round %d", r)
	}
	st := s.Stats()
	assert.Equal(t, uint64(tasks), st.Created)
	assert.Equal(t, uint64(tasks), st.Exited)
	assert.Equal(t, uint64(tasks), st.Destroyed)
}

func TestSchedule_OnlyRootReturns(t *testing.T) {
	s := New()
	s.Schedule(true)
	s.Schedule(false)
	assert.Equal(t, s.Root(), s.Self())
	assert.Zero(t, s.Stats().Switches)
}

func TestRunnable_NoOpWhenRunnable(t *testing.T) {
	s := New()
	defer s.Close()
	a, err := s.Create(0, func(any) {}, nil)
	require.NoError(t, err)
	b, err := s.Create(0, func(any) {}, nil)
	require.NoError(t, err)

	s.Runnable(a)
	assert.Equal(t, []TaskID{s.Root(), a, b}, s.ids(&s.runnable))
	drain(t, s)
}

func TestExit_CleanupRunsOnNextTask(t *testing.T) {
	s := New()
	defer s.Close()

	type seen struct {
		arg       any
		state     State
		queued    bool
		self      TaskID
		finished  bool
		destroyed error
	}
	var got seen
	var id TaskID
	id, err := s.Create(0, func(any) {
		s.Exit("bye", func(arg any) {
			got.arg = arg
			got.state = s.State(id)
			for _, q := range [][]TaskID{s.ids(&s.runnable), s.ids(&s.sleeping)} {
				for _, x := range q {
					got.queued = got.queued || x == id
				}
			}
			got.self = s.Self()
			got.finished = s.tasks[id.index()].ctx.Finished()
			got.destroyed = s.Destroy(id)
		})
		t.Error("Exit returned")
	}, nil)
	require.NoError(t, err)

	s.Schedule(true)

	assert.Equal(t, "bye", got.arg)
	assert.Equal(t, StateExited, got.state)
	assert.False(t, got.queued)
	assert.Equal(t, s.Root(), got.self)
	assert.True(t, got.finished)
	assert.NoError(t, got.destroyed)
	assert.Equal(t, StateFree, s.State(id))
}

func TestExit_RootPanics(t *testing.T) {
	s := New()
	assert.Panics(t, func() { s.Exit(nil, nil) })
}

func TestDestroy_ParkedTaskUnwinds(t *testing.T) {
	s := New()
	defer s.Close()
	unwound := false
	id, err := s.Create(0, func(any) {
		defer func() { unwound = true }()
		s.Schedule(true)
		t.Error("resumed after destroy")
	}, nil)
	require.NoError(t, err)

	s.Schedule(true)
	require.Equal(t, StateSleeping, s.State(id))

	require.NoError(t, s.Destroy(id))
	assert.True(t, unwound)
	assert.Equal(t, StateFree, s.State(id))
	assert.Equal(t, int64(1), s.Stats().Stacks.Cached)

	// Destroying again is harmless.
	assert.NoError(t, s.Destroy(id))
}

func TestDestroy_DeferredCallsMayWakeOthers(t *testing.T) {
	s := New()
	defer s.Close()
	w := NewWait(s)
	woke := false
	_, err := s.Create(0, func(any) {
		w.Wait()
		woke = true
	}, nil)
	require.NoError(t, err)

	var victim TaskID
	var seen State
	victim, err = s.Create(0, func(any) {
		defer func() {
			seen = s.State(victim)
			s.Cancel(victim)
			assert.True(t, w.Notify())
		}()
		s.Schedule(true)
	}, nil)
	require.NoError(t, err)

	s.Schedule(true)
	require.Equal(t, 1, w.Len())
	require.NoError(t, s.Destroy(victim))
	assert.Equal(t, StateExited, seen)
	assert.Equal(t, StateFree, s.State(victim))
	assert.Equal(t, 2, s.RunnableCount(), "root and the woken sleeper")
	drain(t, s)
	assert.True(t, woke)
}

func TestDestroy_RootPanics(t *testing.T) {
	s := New()
	assert.Panics(t, func() { _ = s.Destroy(s.Root()) })
}

func TestSlotReuse_BumpsGeneration(t *testing.T) {
	s := New()
	defer s.Close()
	old, err := s.Create(0, func(any) {}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Destroy(old))

	fresh, err := s.Create(0, func(any) {}, nil)
	require.NoError(t, err)
	assert.Equal(t, old.index(), fresh.index())
	assert.NotEqual(t, old, fresh)
	assert.Equal(t, StateFree, s.State(old))

	s.Runnable(old)
	assert.Equal(t, 2, s.RunnableCount())
	drain(t, s)
	assert.Equal(t, int64(1), s.Stats().Stacks.Reused)
}

func TestStack_ArenaIsTaskLocal(t *testing.T) {
	s := New()
	defer s.Close()
	var n int
	_, err := s.Create(32<<10, func(any) {
		arena := s.Stack(s.Self())
		n = len(arena)
		for i := range arena[:1024] {
			arena[i] = byte(i)
		}
	}, nil)
	require.NoError(t, err)
	drain(t, s)
	assert.Greater(t, n, 30<<10)
}

func TestCancel_WakesSleeper(t *testing.T) {
	s := New()
	defer s.Close()
	var canceled bool
	id, err := s.Create(0, func(any) {
		s.Schedule(true)
		canceled = s.Canceled()
	}, nil)
	require.NoError(t, err)

	s.Schedule(true)
	s.Cancel(id)
	drain(t, s)
	assert.True(t, canceled)
}

func TestConcurrentEntryPanics(t *testing.T) {
	s := New()
	s.busy.Store(true)
	defer s.busy.Store(false)
	assert.Panics(t, func() { s.Schedule(false) })
}
