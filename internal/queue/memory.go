package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryQueue is an in-process queue for single-binary development setups.
type MemoryQueue struct {
	mu        sync.RWMutex
	ch        chan string
	done      chan struct{}
	closed    bool
	closeOnce sync.Once
}

// NewMemoryQueue constructs a MemoryQueue with the given buffer size.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{ch: make(chan string, size), done: make(chan struct{})}
}

// Send enqueues the encoded message, blocking while the buffer is full.
// A blocked Send returns ErrClosed once Close is called.
func (q *MemoryQueue) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- string(payload):
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive waits up to wait for a message.
func (q *MemoryQueue) Receive(ctx context.Context, wait time.Duration) (string, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case body, open := <-q.ch:
		if !open {
			return "", false, ErrClosed
		}
		return body, true, nil
	case <-timer.C:
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// Len reports the number of buffered messages.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

// Close stops accepting messages. Buffered messages can still be received.
func (q *MemoryQueue) Close() {
	q.closeOnce.Do(func() {
		// Wake blocked senders first; they hold the read lock.
		close(q.done)
		q.mu.Lock()
		defer q.mu.Unlock()
		q.closed = true
		close(q.ch)
	})
}

var (
	_ Client   = (*MemoryQueue)(nil)
	_ Receiver = (*MemoryQueue)(nil)
)
