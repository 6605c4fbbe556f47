package app

import (
	"sync"

	"github.com/yourusername/vidgrab/internal/domain"
)

// TaskQueue is an unbounded FIFO of tasks shared by submitters and workers
type TaskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []domain.Task
	closed bool
}

// NewTaskQueue creates an empty queue
func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends task without blocking. It returns false once the queue is closed.
func (q *TaskQueue) Enqueue(task domain.Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, task)
	q.cond.Signal()
	return true
}

// Dequeue blocks until a task is available and removes it. It returns
// false when the queue is closed and drained.
func (q *TaskQueue) Dequeue() (domain.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return domain.Task{}, false
	}

	task := q.items[0]
	q.items[0] = domain.Task{}
	q.items = q.items[1:]
	return task, true
}

// Len returns the number of waiting tasks
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes every blocked Dequeue. Tasks already queued are still handed out.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}
