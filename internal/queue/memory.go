package queue

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryQueue is an in-process queue backed by a buffered channel.
type MemoryQueue struct {
	ch        chan Announcement
	log       *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewMemoryQueue creates a queue holding up to buffer pending announcements.
func NewMemoryQueue(buffer int, log *slog.Logger) *MemoryQueue {
	if buffer <= 0 {
		buffer = 1
	}
	return &MemoryQueue{
		ch:   make(chan Announcement, buffer),
		log:  log.With("component", "memory_queue"),
		done: make(chan struct{}),
	}
}

// Publish blocks while the buffer is full.
func (q *MemoryQueue) Publish(ctx context.Context, a Announcement) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrClosed
	}
}

func (q *MemoryQueue) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return ErrClosed
		case a := <-q.ch:
			if err := handler(ctx, a); err != nil {
				q.requeue(ctx, a, err)
			}
		}
	}
}

func (q *MemoryQueue) requeue(ctx context.Context, a Announcement, err error) {
	a, ok := retry(ctx, q.log, a, err)
	if !ok {
		return
	}
	select {
	case q.ch <- a:
	default:
		q.log.ErrorContext(ctx, "Queue full, dropping failed announcement", "chat_id", a.ChatID)
	}
}

// Close stops consumers and rejects further publishes.
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
