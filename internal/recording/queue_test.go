package recording

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 3000; i++ {
		q.Push(strconv.Itoa(i))
	}
	assert.Equal(t, 3000, q.Len())

	for i := 0; i < 3000; i++ {
		record, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, strconv.Itoa(i), record)
	}

	_, ok := q.Pop()
	assert.False(t, ok)
	assert.Equal(t, int64(3000), q.Pushed())
}

func TestQueueClear(t *testing.T) {
	q := NewQueue()
	q.Push("a")
	q.Push("b")
	q.Pop()

	assert.Equal(t, 1, q.Clear())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, int64(0), q.Pushed())

	q.Push("c")
	record, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "c", record)
}

func TestQueueConcurrentProducerKeepsOrder(t *testing.T) {
	q := NewQueue()
	const total = 10000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			q.Push(strconv.Itoa(i))
		}
	}()

	next := 0
	for next < total {
		record, ok := q.Pop()
		if !ok {
			continue
		}
		require.Equal(t, strconv.Itoa(next), record)
		next++
	}
	wg.Wait()
}
