package sched

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fiber/api"
)

func TestWait_NotifyFIFO(t *testing.T) {
	s := New()
	defer s.Close()
	w := NewWait(s)
	var order []int
	for i := 0; i < 3; i++ {
		_, err := s.Create(0, func(arg any) {
			w.Wait()
			order = append(order, arg.(int))
		}, i)
		require.NoError(t, err)
	}

	s.Schedule(true)
	require.Equal(t, 3, w.Len())
	assert.Empty(t, order)

	for i := 0; i < 3; i++ {
		assert.True(t, w.Notify())
	}
	assert.False(t, w.Notify())
	drain(t, s)
	assert.Equal(t, []int{0, 1, 2}, order)
	w.Destroy()
}

func TestWait_NotifyWakesOne(t *testing.T) {
	s := New()
	defer s.Close()
	w := NewWait(s)
	woken := 0
	for i := 0; i < 2; i++ {
		_, err := s.Create(0, func(any) {
			w.Wait()
			woken++
		}, nil)
		require.NoError(t, err)
	}
	s.Schedule(true)
	w.Notify()
	s.Schedule(true)
	assert.Equal(t, 1, woken)
	assert.Equal(t, 1, w.Len())

	w.Notify()
	drain(t, s)
	assert.Equal(t, 2, woken)
}

func TestWait_DestroyedWaiterSkipped(t *testing.T) {
	s := New()
	defer s.Close()
	w := NewWait(s)
	var ran []int
	ids := make([]TaskID, 2)
	for i := range ids {
		id, err := s.Create(0, func(arg any) {
			w.Wait()
			ran = append(ran, arg.(int))
		}, i)
		require.NoError(t, err)
		ids[i] = id
	}
	s.Schedule(true)
	require.NoError(t, s.Destroy(ids[0]))
	assert.Equal(t, 1, w.Len())
	assert.True(t, w.Notify())
	drain(t, s)
	assert.Equal(t, []int{1}, ran)
}

func TestSemaphore_Bounds(t *testing.T) {
	s := New()
	_, err := NewSemaphore(s, -1)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	big := int64(SemaphoreMax) + 1
	_, err = NewSemaphore(s, int(big))
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	sem, err := NewSemaphore(s, SemaphoreMax)
	require.NoError(t, err)
	assert.ErrorIs(t, sem.Post(), api.ErrOverflow)
	assert.Equal(t, SemaphoreMax, sem.Value())
	require.NoError(t, sem.Wait())
	assert.NoError(t, sem.Post())
}

func TestSemaphore_NeverNegative(t *testing.T) {
	s := New()
	defer s.Close()
	sem, err := NewSemaphore(s, 0)
	require.NoError(t, err)

	const producers, consumers, perProducer = 3, 4, 40
	const perConsumer = producers * perProducer / consumers
	rng := rand.New(rand.NewSource(7))
	posts, waits := 0, 0
	check := func() {
		assert.GreaterOrEqual(t, sem.Value(), 0)
		assert.LessOrEqual(t, waits, posts)
	}

	for i := 0; i < producers; i++ {
		_, err := s.Create(0, func(any) {
			for n := 0; n < perProducer; n++ {
				if rng.Intn(3) == 0 {
					s.Schedule(false)
				}
				assert.NoError(t, sem.Post())
				posts++
				check()
			}
		}, nil)
		require.NoError(t, err)
	}
	for i := 0; i < consumers; i++ {
		_, err := s.Create(0, func(any) {
			for n := 0; n < perConsumer; n++ {
				if rng.Intn(2) == 0 {
					s.Schedule(false)
				}
				assert.NoError(t, sem.Wait())
				waits++
				check()
			}
		}, nil)
		require.NoError(t, err)
	}
	drain(t, s)
	assert.Equal(t, producers*perProducer, posts)
	assert.Equal(t, posts, waits)
	assert.Zero(t, sem.Value())
	sem.Destroy()
}

func TestSemaphore_CancelWhileWaiting(t *testing.T) {
	s := New()
	defer s.Close()
	sem, err := NewSemaphore(s, 0)
	require.NoError(t, err)
	var got error
	id, err := s.Create(0, func(any) { got = sem.Wait() }, nil)
	require.NoError(t, err)

	s.Schedule(true)
	s.Cancel(id)
	drain(t, s)
	assert.ErrorIs(t, got, api.ErrCanceled)
	assert.Zero(t, sem.Value())
	sem.Destroy()
}
