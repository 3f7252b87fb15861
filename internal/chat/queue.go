package chat

import (
	"context"
	"errors"
)

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
// Enqueue never waits; the caller reports the drop.
var ErrQueueFull = errors.New("send queue is full")

// OutboundQueue is a bounded FIFO of pending sends shared by the input loop
// and the classifier (producers) and drained by the single dispatcher.
type OutboundQueue struct {
	tasks chan OutboundTask
}

func NewOutboundQueue(capacity int) *OutboundQueue {
	if capacity <= 0 {
		capacity = 1
	}

	return &OutboundQueue{tasks: make(chan OutboundTask, capacity)}
}

// TryEnqueue adds a task without blocking. Returns ErrQueueFull at capacity.
func (q *OutboundQueue) TryEnqueue(task OutboundTask) error {
	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks until a task is available or the context is canceled, in
// which case it returns false.
func (q *OutboundQueue) Dequeue(ctx context.Context) (OutboundTask, bool) {
	select {
	case <-ctx.Done():
		return OutboundTask{}, false
	case task := <-q.tasks:
		return task, true
	}
}

func (q *OutboundQueue) Len() int {
	return len(q.tasks)
}
