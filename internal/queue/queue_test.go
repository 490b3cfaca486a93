package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Tick    uint
	Vehicle uint16
}

func TestQueue_PushPop(t *testing.T) {
	q := New[sample]()
	require.True(t, q.Empty())

	_, ok := q.Pop()
	assert.False(t, ok)

	q.Push(sample{Tick: 1}, sample{Tick: 2})
	q.Push(sample{Tick: 3})
	assert.Equal(t, 3, q.Len())

	got, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, uint(1), got.Tick)
	assert.Equal(t, 2, q.Len())
}

func TestQueue_Drain(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)

	assert.Equal(t, []int{1, 2, 3}, q.Drain())
	assert.True(t, q.Empty())
	assert.Empty(t, q.Drain())
}

func TestQueue_RequeueKeepsOrder(t *testing.T) {
	q := New[int]()
	q.Push(1, 2)
	taken := q.Drain()
	q.Push(3)

	q.Requeue(taken...)
	assert.Equal(t, []int{1, 2, 3}, q.Drain())

	q.Requeue()
	assert.True(t, q.Empty())
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[sample]()
	var wg sync.WaitGroup
	for v := range 8 {
		wg.Add(1)
		go func(id uint16) {
			defer wg.Done()
			for i := range 100 {
				q.Push(sample{Tick: uint(i), Vehicle: id})
			}
		}(uint16(v))
	}

	drained := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			drained += len(q.Drain())
			assert.Equal(t, 800, drained)
			return
		default:
			drained += len(q.Drain())
		}
	}
}
