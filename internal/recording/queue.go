// internal/recording/queue.go
package recording

import (
	"sync"
	"sync/atomic"
)

// Queue is the FIFO between the stream receiver and the sink. Records leave
// it only through Pop or an explicit Clear.
type Queue struct {
	mu     sync.Mutex
	items  []string
	head   int
	pushed atomic.Int64
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends a record
func (q *Queue) Push(record string) {
	q.mu.Lock()
	q.items = append(q.items, record)
	q.mu.Unlock()
	q.pushed.Add(1)
}

// Pop removes the oldest record
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.items) {
		return "", false
	}

	record := q.items[q.head]
	q.items[q.head] = ""
	q.head++

	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 1024 && q.head*2 > len(q.items) {
		// Compact once the consumed prefix dominates.
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
	return record, true
}

// Len returns the number of queued records
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Clear discards every queued record, resets the push counter and returns
// how many records were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := len(q.items) - q.head
	q.items = nil
	q.head = 0
	q.pushed.Store(0)
	return dropped
}

// Pushed returns the number of records pushed since the last Clear
func (q *Queue) Pushed() int64 {
	return q.pushed.Load()
}
