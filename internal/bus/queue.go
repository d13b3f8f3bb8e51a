// Package bus provides the bounded in-memory event queue that carries
// market, signal, order and fill events between the pipeline stages.
package bus

import (
	"errors"
	"sync/atomic"

	"quantd/internal/domain"
	"quantd/internal/metrics"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Queue is a bounded FIFO of domain events. Publishing never blocks; a
// full queue is a hard fault surfaced to the caller rather than silent
// backpressure.
type Queue struct {
	ch     chan domain.Event
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan domain.Event, capacity)}
}

// Publish enqueues an event without blocking.
func (q *Queue) Publish(e domain.Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Len reports the number of events currently buffered.
func (q *Queue) Len() int { return len(q.ch) }

// Close stops the queue from accepting new events.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Drain hands every event buffered at the time of the call to handler, in
// FIFO order. Events published by the handlers themselves are drained too,
// so a signal raised while draining a market event is processed within the
// same drain. Drain returns once the queue is momentarily empty.
func (q *Queue) Drain(handler func(domain.Event) error) error {
	for {
		select {
		case e, ok := <-q.ch:
			if !ok {
				return nil
			}
			metrics.QueueDepth.Set(float64(len(q.ch)))
			if err := handler(e); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}
