package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/WangYihang/url-dedup/pkg/domain/entity"
	"github.com/WangYihang/url-dedup/pkg/domain/repository"
)

// ErrQueueClosed is returned when sending to a closed queue
var ErrQueueClosed = errors.New("queue closed")

// TaskQueue implements repository.TaskQueue
type TaskQueue struct {
	ch     chan *entity.Task
	closed bool
	mu     sync.RWMutex
}

// NewTaskQueue creates a new task queue
func NewTaskQueue(size int) repository.TaskQueue {
	return &TaskQueue{
		ch: make(chan *entity.Task, size),
	}
}

// Enqueue adds a task to the queue, waiting for room
func (q *TaskQueue) Enqueue(ctx context.Context, task *entity.Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes and returns a task from the queue
func (q *TaskQueue) Dequeue() (*entity.Task, bool) {
	task, ok := <-q.ch
	return task, ok
}

// Len returns the current queue length
func (q *TaskQueue) Len() int {
	return len(q.ch)
}

// Close closes the queue
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// ResultQueue implements repository.ResultQueue
type ResultQueue struct {
	ch     chan *entity.URLRecord
	closed bool
	mu     sync.RWMutex
}

// NewResultQueue creates a new result queue
func NewResultQueue(size int) repository.ResultQueue {
	return &ResultQueue{
		ch: make(chan *entity.URLRecord, size),
	}
}

// Send sends a record to the queue, waiting for room
func (q *ResultQueue) Send(ctx context.Context, record *entity.URLRecord) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- record:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive receives a record from the queue
func (q *ResultQueue) Receive() (*entity.URLRecord, bool) {
	record, ok := <-q.ch
	return record, ok
}

// Close closes the queue
func (q *ResultQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
