package task

import (
	"context"

	"github.com/google/uuid"
)

// Task type constants
const (
	// TaskTypeDelivery is one push delivery attempt for a due reminder.
	TaskTypeDelivery = "reminder_delivery"
)

// Task represents a unit of background work to be processed.
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// TaskQueueReader provides read-only access to the task channel
// allowing workers to consume tasks without the ability to enqueue.
type TaskQueueReader interface {
	GetChannel() <-chan Task
}

// TaskQueueWriter provides write access to the task queue.
type TaskQueueWriter interface {
	// Enqueue adds a task without blocking.
	// Returns ErrQueueFull or ErrQueueClosed when the task is not accepted.
	Enqueue(task Task) error

	// Close prevents further submission; queued tasks are still delivered.
	Close()
}
