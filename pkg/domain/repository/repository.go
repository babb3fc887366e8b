package repository

import (
	"context"

	"github.com/WangYihang/url-dedup/pkg/domain/entity"
)

// URLStore persists URL records across runs
type URLStore interface {
	// Save upserts a batch of records keyed by hash value
	Save(ctx context.Context, records []*entity.URLRecord) error
	// Count returns the number of stored URLs
	Count(ctx context.Context) (int64, error)
	// Close closes the store
	Close() error
}

// ResultWriter writes URL records
type ResultWriter interface {
	// Write writes a single record
	Write(record *entity.URLRecord) error
	// Flush ensures all buffered data is written
	Flush() error
	// Close closes the writer
	Close() error
}

// TaskQueue manages batches of URLs waiting to be checked
type TaskQueue interface {
	// Enqueue blocks until the task is queued, the queue is closed or ctx is done
	Enqueue(ctx context.Context, task *entity.Task) error
	// Dequeue removes and returns a task from the queue
	Dequeue() (*entity.Task, bool)
	// Len returns the current queue length
	Len() int
	// Close closes the queue
	Close()
}

// ResultQueue carries checked records to the writer
type ResultQueue interface {
	// Send sends a record to the queue
	Send(ctx context.Context, record *entity.URLRecord) error
	// Receive receives a record from the queue
	Receive() (*entity.URLRecord, bool)
	// Close closes the queue
	Close()
}
